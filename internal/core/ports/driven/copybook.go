package driven

// CopybookResolver resolves COPY directives against the workspace search
// roots and reads copybook text.
type CopybookResolver interface {
	// Resolve maps a copybook name (optionally qualified by a library)
	// to a file path. The ordered search roots are tried with the
	// allowed extensions; the first match wins.
	Resolve(name, library string) (path string, ok bool)

	// Read returns the format-normalized lines of a resolved copybook.
	Read(path string) ([]string, error)

	// Paths returns the ordered search roots currently in effect.
	Paths() []string
}
