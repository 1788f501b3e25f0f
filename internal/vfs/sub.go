package vfs

// Sub is a view of a subtree of another FS. Closing it leaves the parent open.
type Sub struct {
	parent FS
	prefix string
}

// NewSub returns the subtree of parent rooted at prefix.
func NewSub(parent FS, prefix string) *Sub {
	return &Sub{parent: parent, prefix: Clean(prefix)}
}

// Prefix returns the subtree root inside the parent.
func (s *Sub) Prefix() string {
	return s.prefix
}

func (s *Sub) full(name string) string {
	return Join(s.prefix, name)
}

func (s *Sub) Entries(dir string) ([]string, error) { return s.parent.Entries(s.full(dir)) }
func (s *Sub) Dirs(dir string) ([]string, error)    { return s.parent.Dirs(s.full(dir)) }
func (s *Sub) Files(dir string) ([]string, error)   { return s.parent.Files(s.full(dir)) }
func (s *Sub) ReadBytes(name string) ([]byte, error) {
	return s.parent.ReadBytes(s.full(name))
}
func (s *Sub) ReadText(name string) (string, error) {
	return s.parent.ReadText(s.full(name))
}

func (s *Sub) Close() error {
	return nil
}
