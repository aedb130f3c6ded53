package platform

// Library is a loaded native library.
type Library struct {
	Path   string
	handle uintptr
}

// Handle returns the OS handle, or 0 where loading is validated only.
func (l *Library) Handle() uintptr { return l.handle }
