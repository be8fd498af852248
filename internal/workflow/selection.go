package workflow

import (
	"strconv"
	"strings"
)

// toggleSet is the ordered multi-select of the borrow workflow.
type toggleSet struct {
	ids []int
}

// flip adds id if absent, removes it otherwise, and reports whether id is now selected.
func (s *toggleSet) flip(id int) bool {
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return false
		}
	}
	s.ids = append(s.ids, id)
	return true
}

func (s *toggleSet) has(id int) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *toggleSet) list() []int {
	return append([]int(nil), s.ids...)
}

func (s *toggleSet) reset(ids []int) {
	s.ids = nil
	for _, id := range ids {
		if !s.has(id) {
			s.ids = append(s.ids, id)
		}
	}
}

// fromChecked recomputes a checkbox selection: the checked ids that exist in
// listed, in list order, without duplicates.
func fromChecked(listed []int, checked []int) []int {
	on := make(map[int]bool, len(checked))
	for _, id := range checked {
		on[id] = true
	}
	out := []int{}
	for _, id := range listed {
		if on[id] {
			out = append(out, id)
			delete(on, id)
		}
	}
	return out
}

// JoinCSV serializes ids the way the borrow form expects: "3,5".
func JoinCSV(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// JoinJSON serializes ids the way the return form expects: "[3,5]".
func JoinJSON(ids []int) string {
	return "[" + JoinCSV(ids) + "]"
}
