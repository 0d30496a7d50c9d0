package dbs

// StorageConfig bundles the padding and block-capacity distribution
// parameters. Production values resist fingerprinting of session
// population or write workload via file-size signatures; test values
// shrink the same distributions so unit tests stay fast.
type StorageConfig struct {
	ParetoMin   uint64
	ParetoMax   uint64
	ParetoAlpha float64

	BlockCapacityMin   uint64
	BlockCapacityMax   uint64
	BlockCapacityMu    float64
	BlockCapacitySigma float64
}

// ProductionStorageConfig returns the defaults in spec §6.
func ProductionStorageConfig() StorageConfig {
	return StorageConfig{
		ParetoMin:   5 * (1 << 20),
		ParetoMax:   600 * (1 << 20),
		ParetoAlpha: 1.25,

		BlockCapacityMin:   2 * (1 << 20),
		BlockCapacityMax:   256 * (1 << 20),
		BlockCapacityMu:    17.33, // ln(32 MiB)
		BlockCapacitySigma: 0.4,
	}
}

// TestStorageConfig scales the production distributions down by several
// orders of magnitude so tests that exercise allocation do not write
// hundreds of megabytes of padding.
func TestStorageConfig() StorageConfig {
	return StorageConfig{
		ParetoMin:   64,
		ParetoMax:   4096,
		ParetoAlpha: 1.25,

		BlockCapacityMin:   256,
		BlockCapacityMax:   8192,
		BlockCapacityMu:    6.5, // ln(~665)
		BlockCapacitySigma: 0.4,
	}
}

const (
	// AddressingBlobSize is the fixed size of the addressing file.
	AddressingBlobSize = 65536 * 32
	// SlotSize is the size in bytes of one addressing slot.
	SlotSize = 32
	// SlotCount is the number of addressing slots.
	SlotCount = 65536
	// SlotsPerSession is the number of slots each session occupies.
	SlotsPerSession = 46
	// BlockHeaderSize is the 4-byte used_length prefix of a block's
	// plaintext.
	BlockHeaderSize = 4
	// ZeroFillStep is the chunk size used to advance through completely
	// unmapped logical ranges on read.
	ZeroFillStep = 4096
	// PaddingChunkSize is the chunk size used to stream random padding
	// bytes to disk.
	PaddingChunkSize = 64 * 1024
)
