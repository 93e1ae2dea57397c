package review

// Selection is the per-viewer, per-document UI state. Isolated restricts the
// highlight set fed to Merge to a single highlight; Active controls which
// comment thread is expanded and scrolled to. The two are independent.
//
// The zero value (nothing active, nothing isolated) is the initial state and
// the state after a document switch.
type Selection struct {
	Active   string `json:"active,omitempty"`
	Isolated string `json:"isolated,omitempty"`
}

// SelectIsolate toggles isolation for id. Active is left untouched.
func (s *Selection) SelectIsolate(id string) {
	if s.Isolated == id {
		s.Isolated = ""
		return
	}
	s.Isolated = id
}

// ClearIsolation is the explicit "show all highlights" action.
func (s *Selection) ClearIsolation() {
	s.Isolated = ""
}

// Reset returns to the initial state; invoked when the viewed document changes.
func (s *Selection) Reset() {
	*s = Selection{}
}

// ClickSegment applies the segment-click rule. A single-highlight segment
// toggles its highlight active/inactive. A multi-highlight segment cycles
// through its highlights starting after the currently active one, wrapping
// around and never clearing.
func (s *Selection) ClickSegment(highlightIDs []string) {
	switch len(highlightIDs) {
	case 0:
		return
	case 1:
		if s.Active == highlightIDs[0] {
			s.Active = ""
		} else {
			s.Active = highlightIDs[0]
		}
	default:
		pos := -1
		for i, id := range highlightIDs {
			if id == s.Active {
				pos = i
				break
			}
		}
		s.Active = highlightIDs[(pos+1)%len(highlightIDs)]
	}
}
