package engine

// ObjectQuota counts emitted objects and enforces maxobjects.
//
// One quota is created per build. Emission admits an object first; once
// the count reaches the limit the build stops, so a build never emits
// more than Max objects.
type ObjectQuota struct {
	max     int
	current int
}

// NewObjectQuota creates a quota allowing max objects.
func NewObjectQuota(max int) *ObjectQuota {
	return &ObjectQuota{max: max}
}

// Admit counts one object and reports whether it may be emitted.
func (q *ObjectQuota) Admit() bool {
	if q.current >= q.max {
		return false
	}
	q.current++
	return true
}

// Reached reports whether no further object may be emitted.
func (q *ObjectQuota) Reached() bool {
	return q.current >= q.max
}

// Current returns the number of admitted objects.
func (q *ObjectQuota) Current() int {
	return q.current
}

// Max returns the limit.
func (q *ObjectQuota) Max() int {
	return q.max
}
