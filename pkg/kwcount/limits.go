package kwcount

import "fmt"

// ValidateKeywords enforces the vocabulary caps. Keywords must be
// non-empty, unique and no longer than MaxKeywordLen bytes.
func (l Limits) ValidateKeywords(keywords []string) error {
	l = l.withDefaults()

	if len(keywords) == 0 {
		return ErrNoKeywords
	}
	if len(keywords) > l.MaxKeywords {
		return fmt.Errorf("%w: %d keywords, cap is %d", ErrTooManyKeywords, len(keywords), l.MaxKeywords)
	}

	seen := make(map[string]int, len(keywords))
	for i, kw := range keywords {
		if kw == "" {
			return fmt.Errorf("%w: keyword %d is empty", ErrNoKeywords, i)
		}
		if len(kw) > l.MaxKeywordLen {
			return fmt.Errorf("%w: %q is %d bytes, cap is %d", ErrKeywordTooLong, kw, len(kw), l.MaxKeywordLen)
		}
		if first, dup := seen[kw]; dup {
			return fmt.Errorf("%w: %q at %d and %d", ErrDuplicateKeyword, kw, first, i)
		}
		seen[kw] = i
	}

	return nil
}

// ClampRecord applies the record cap under policy. It returns the record to
// scan and whether its tail was dropped.
func (l Limits) ClampRecord(record string, policy TruncationPolicy) (string, bool, error) {
	l = l.withDefaults()

	if len(record) <= l.MaxRecordLen {
		return record, false, nil
	}
	if policy == RejectRecords {
		return "", false, fmt.Errorf("%w: %d bytes, cap is %d", ErrRecordTooLong, len(record), l.MaxRecordLen)
	}
	return record[:l.MaxRecordLen], true, nil
}

// ClampRecords applies ClampRecord to every record in place and returns how
// many were truncated.
func (l Limits) ClampRecords(records []string, policy TruncationPolicy) (int, error) {
	truncated := 0
	for i, rec := range records {
		out, cut, err := l.ClampRecord(rec, policy)
		if err != nil {
			return truncated, fmt.Errorf("record %d: %w", i, err)
		}
		if cut {
			records[i] = out
			truncated++
		}
	}
	return truncated, nil
}
