package tui

type View int

const (
	ViewDesk View = iota
	ViewCompose
	ViewSearch
	ViewEdit
	ViewPreview
)

func (v View) String() string {
	switch v {
	case ViewDesk:
		return "desk"
	case ViewCompose:
		return "compose"
	case ViewSearch:
		return "search"
	case ViewEdit:
		return "edit"
	case ViewPreview:
		return "preview"
	default:
		return "unknown"
	}
}
