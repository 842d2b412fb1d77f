package comm

import (
	"context"
	"encoding/binary"
	"fmt"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// BroadcastStrings sends root's values to every rank. values is only read
// on root.
func BroadcastStrings(ctx context.Context, c Communicator, root int, values []string, codec Codec) ([]string, error) {
	var payload []byte
	if c.Rank() == root {
		buf, err := codec.Encode(values)
		if err != nil {
			c.Abort(err)
			return nil, fmt.Errorf("encode broadcast: %w", err)
		}
		payload = buf
	}

	buf, err := c.Broadcast(ctx, root, payload)
	if err != nil {
		return nil, err
	}

	out, err := codec.Decode(buf)
	if err != nil {
		c.Abort(err)
		return nil, fmt.Errorf("decode broadcast: %w", err)
	}

	return out, nil
}

// BroadcastInt sends root's value to every rank.
func BroadcastInt(ctx context.Context, c Communicator, root int, value int) (int, error) {
	var payload []byte
	if c.Rank() == root {
		payload = binary.AppendVarint(nil, int64(value))
	}

	buf, err := c.Broadcast(ctx, root, payload)
	if err != nil {
		return 0, err
	}

	v, n := binary.Varint(buf)
	if n <= 0 || n != len(buf) {
		err := fmt.Errorf("%w: bad integer payload", kwcount.ErrFrameCorrupt)
		c.Abort(err)
		return 0, err
	}

	return int(v), nil
}

// ScatterRecords sends slices[i] to rank i. slices is only read on root.
func ScatterRecords(ctx context.Context, c Communicator, root int, slices [][]string, codec Codec) ([]string, error) {
	var parts [][]byte
	if c.Rank() == root {
		if len(slices) != c.Size() {
			err := fmt.Errorf("%w: got %d slices for %d ranks", kwcount.ErrScatterShape, len(slices), c.Size())
			c.Abort(err)
			return nil, err
		}

		parts = make([][]byte, len(slices))
		for i, recs := range slices {
			buf, err := codec.Encode(recs)
			if err != nil {
				err = fmt.Errorf("encode slice for rank %d: %w", i, err)
				c.Abort(err)
				return nil, err
			}
			parts[i] = buf
		}
	}

	buf, err := c.Scatter(ctx, root, parts)
	if err != nil {
		return nil, err
	}

	records, err := codec.Decode(buf)
	if err != nil {
		err = fmt.Errorf("decode slice on rank %d: %w", c.Rank(), err)
		c.Abort(err)
		return nil, err
	}

	return records, nil
}
