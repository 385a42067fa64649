package entity

// Quota is a metered ceiling: either unlimited or bounded at a fixed count.
// The zero value is Bounded(0), which denies everything.
type Quota struct {
	unlimited bool
	limit     int32
}

func UnlimitedQuota() Quota {
	return Quota{unlimited: true}
}

func BoundedQuota(limit int32) Quota {
	if limit < 0 {
		limit = 0
	}
	return Quota{limit: limit}
}

func (q Quota) IsUnlimited() bool {
	return q.unlimited
}

// Limit is only meaningful for bounded quotas; callers must short-circuit on
// IsUnlimited before doing any arithmetic.
func (q Quota) Limit() int32 {
	return q.limit
}

func (q Quota) Remaining(used int32) int32 {
	if q.unlimited {
		return 0
	}
	if used >= q.limit {
		return 0
	}
	return q.limit - used
}
