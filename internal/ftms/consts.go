package ftms

// Fitness Machine Service (FTMS) identifiers
const (
	ServiceUUID16        uint16 = 0x1826
	IndoorBikeDataUUID16 uint16 = 0x2AD2

	ServiceUUID            = "00001826-0000-1000-8000-00805f9b34fb"
	CharUUIDIndoorBikeData = "00002ad2-0000-1000-8000-00805f9b34fb"
)

// Indoor Bike Data flag bit positions (FTMS 1.0)
const (
	flagMoreData             = 1 << 0 // 0 = Instantaneous Speed present, 1 = not present
	flagAverageSpeed         = 1 << 1
	flagInstantaneousCadence = 1 << 2
	flagAverageCadence       = 1 << 3
	flagTotalDistance        = 1 << 4
	flagResistanceLevel      = 1 << 5
	flagInstantaneousPower   = 1 << 6
	flagAveragePower         = 1 << 7
	flagExpendedEnergy       = 1 << 8
	flagHeartRate            = 1 << 9
	flagMetabolicEquivalent  = 1 << 10
	flagElapsedTime          = 1 << 11
	flagRemainingTime        = 1 << 12
)

// Field widths in bytes, in wire order after the flags
const (
	widthSpeed         = 2
	widthCadence       = 2
	widthTotalDistance = 3
	widthExpended      = 5
	widthSingleByte    = 1
)

// minFrameLen is the shortest payload accepted. Shorter payloads cannot
// carry flags plus any field and are rejected as malformed.
const minFrameLen = 4

const (
	speedResolutionKph   = 0.01
	cadenceResolutionRpm = 0.5
	metResolution        = 0.1
)
