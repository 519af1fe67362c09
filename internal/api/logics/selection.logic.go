package logics

// DefaultSelectionCapacity is the number of measurements charted side by side.
const DefaultSelectionCapacity = 3

// MeasurementSelection is an ordered, capacity-bounded set of measurement ids.
// It is not safe for concurrent use; HistoryController guards its own copy.
type MeasurementSelection struct {
	ids      []string
	capacity int
}

// NewMeasurementSelection creates an empty selection. A non-positive
// capacity falls back to DefaultSelectionCapacity.
func NewMeasurementSelection(capacity int) *MeasurementSelection {
	if capacity <= 0 {
		capacity = DefaultSelectionCapacity
	}
	return &MeasurementSelection{capacity: capacity}
}

func (s *MeasurementSelection) Capacity() int { return s.capacity }

func (s *MeasurementSelection) Len() int { return len(s.ids) }

func (s *MeasurementSelection) Full() bool { return len(s.ids) >= s.capacity }

func (s *MeasurementSelection) Contains(id string) bool {
	return s.indexOf(id) >= 0
}

// Add appends id. Adding beyond capacity, an empty id, or an id already
// present is a no-op reported as false.
func (s *MeasurementSelection) Add(id string) bool {
	if id == "" || s.Contains(id) || s.Full() {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id, keeping the order of the rest.
func (s *MeasurementSelection) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	return true
}

// Toggle removes id when present and adds it otherwise. It reports whether
// the selection changed.
func (s *MeasurementSelection) Toggle(id string) bool {
	if s.Contains(id) {
		return s.Remove(id)
	}
	return s.Add(id)
}

func (s *MeasurementSelection) Clear() {
	s.ids = nil
}

// IDs returns a copy of the selection in order.
func (s *MeasurementSelection) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *MeasurementSelection) indexOf(id string) int {
	for i, v := range s.ids {
		if v == id {
			return i
		}
	}
	return -1
}
