package server

// Config contains the HTTP surface's runtime options.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// MaxUploadBytes caps the size of one multipart upload. Zero falls back
	// to the package default.
	MaxUploadBytes int64
}

const defaultMaxUploadBytes = 50 << 20
