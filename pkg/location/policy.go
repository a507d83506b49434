package location

// CanView reports whether viewer may observe subject's position right now.
// It is a pure function of its inputs and is shared by the "shared with me"
// query and the broadcast path.
func CanView(viewer Identity, subject Record) bool {
	if viewer == subject.Owner {
		return false
	}
	return subject.SharingEnabled && subject.HasViewer(viewer)
}
