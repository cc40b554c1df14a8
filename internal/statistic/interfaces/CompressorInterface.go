package interfaces

type CompressorInterface interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	// Extension is appended to shard file names written through this compressor.
	Extension() string
	Close()
}
