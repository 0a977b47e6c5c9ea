package protocol

import (
	"encoding/hex"
	"strings"
	"time"
)

// Command builders. Each builder validates its arguments and returns a
// Request; nothing is encoded until the request reaches an Encoder.

// Reply wait limits
const (
	DefaultTimeout = 3 * time.Second
	AccessTimeout  = 5 * time.Second // tag read/write/lock/kill and EPC match
)

// Argument limits
const (
	MaxAntenna        = 3
	MaxRFPower        = 33
	MinTemporaryPower = 22
	MaxBeeperMode     = 2
	MaxReaderAddress  = 0xFE
	IdentifierLength  = 12
	MaxEPCLength      = 62 // 31 words, the largest length a PC word can encode
)

// Request is a validated command ready to be encoded, with the time the
// caller should wait for its reply.
type Request struct {
	Command Command
	Payload []byte
	Timeout time.Duration
}

// ExpectsReply reports whether the reader answers this request with a
// synchronous reply. Inventory-report commands answer with events only.
func (r Request) ExpectsReply() bool {
	return !r.Command.IsInventoryReport()
}

func newRequest(cmd Command, payload ...byte) Request {
	return Request{Command: cmd, Payload: payload, Timeout: DefaultTimeout}
}

func newAccessRequest(cmd Command, payload []byte) Request {
	return Request{Command: cmd, Payload: payload, Timeout: AccessTimeout}
}

// Password is a 32-bit tag access or kill password.
type Password [4]byte

// ParsePassword decodes an 8 digit hex password such as "00000000".
func ParsePassword(s string) (Password, error) {
	var pwd Password
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != len(pwd) {
		return pwd, invalidArg("password", s, "must be 8 hex digits")
	}
	copy(pwd[:], b)
	return pwd, nil
}

// MemoryBank selects a tag memory bank for read and write access.
type MemoryBank byte

const (
	BankReserved MemoryBank = 0
	BankEPC      MemoryBank = 1
	BankTID      MemoryBank = 2
	BankUser     MemoryBank = 3
)

var memoryBankNames = []string{"RESERVED", "EPC", "TID", "USER"}

func (b MemoryBank) String() string {
	if int(b) < len(memoryBankNames) {
		return memoryBankNames[b]
	}
	return "INVALID"
}

// ParseMemoryBank maps RESERVED, EPC, TID or USER to a bank.
func ParseMemoryBank(name string) (MemoryBank, error) {
	for i, n := range memoryBankNames {
		if strings.EqualFold(n, name) {
			return MemoryBank(i), nil
		}
	}
	return 0, invalidArg("memory bank", name, "must be one of %s", strings.Join(memoryBankNames, ", "))
}

// LockRegion selects the memory region affected by a lock command.
type LockRegion byte

const (
	LockUser           LockRegion = 1
	LockTID            LockRegion = 2
	LockEPC            LockRegion = 3
	LockAccessPassword LockRegion = 4
	LockKillPassword   LockRegion = 5
)

var lockRegionNames = map[string]LockRegion{
	"USER":            LockUser,
	"TID":             LockTID,
	"EPC":             LockEPC,
	"ACCESS_PASSWORD": LockAccessPassword,
	"KILL_PASSWORD":   LockKillPassword,
}

// ParseLockRegion maps USER, TID, EPC, ACCESS_PASSWORD or KILL_PASSWORD to a
// lock region.
func ParseLockRegion(name string) (LockRegion, error) {
	if r, ok := lockRegionNames[strings.ToUpper(name)]; ok {
		return r, nil
	}
	return 0, invalidArg("lock region", name, "must be one of USER, TID, EPC, ACCESS_PASSWORD, KILL_PASSWORD")
}

// LockAction is the lock operation applied to a region.
type LockAction byte

const (
	LockOpen        LockAction = 0
	LockLock        LockAction = 1
	LockOpenForever LockAction = 2
	LockLockForever LockAction = 3
)

var lockActionNames = map[string]LockAction{
	"OPEN":         LockOpen,
	"LOCK":         LockLock,
	"OPEN_FOREVER": LockOpenForever,
	"LOCK_FOREVER": LockLockForever,
}

// ParseLockAction maps OPEN, LOCK, OPEN_FOREVER or LOCK_FOREVER to an action.
func ParseLockAction(name string) (LockAction, error) {
	if a, ok := lockActionNames[strings.ToUpper(name)]; ok {
		return a, nil
	}
	return 0, invalidArg("lock action", name, "must be one of OPEN, LOCK, OPEN_FOREVER, LOCK_FOREVER")
}

// Session is an EPC Gen2 inventory session.
type Session byte

const (
	SessionS0 Session = 0
	SessionS1 Session = 1
	SessionS2 Session = 2
	SessionS3 Session = 3
)

// ParseSession maps S0-S3 to a session.
func ParseSession(name string) (Session, error) {
	switch strings.ToUpper(name) {
	case "S0":
		return SessionS0, nil
	case "S1":
		return SessionS1, nil
	case "S2":
		return SessionS2, nil
	case "S3":
		return SessionS3, nil
	}
	return 0, invalidArg("session", name, "must be one of S0, S1, S2, S3")
}

// Target is the inventoried flag value a session inventory selects.
type Target byte

const (
	TargetA Target = 0
	TargetB Target = 1
)

// ParseTarget maps A or B to a target.
func ParseTarget(name string) (Target, error) {
	switch strings.ToUpper(name) {
	case "A":
		return TargetA, nil
	case "B":
		return TargetB, nil
	}
	return 0, invalidArg("target", name, "must be A or B")
}

// AntennaDisabled marks an unused slot in a fast-switch sequence.
const AntennaDisabled = 0xFF

// FastSwitchStep is one antenna slot of a fast-switch inventory.
type FastSwitchStep struct {
	Antenna byte // 0-3 or AntennaDisabled
	Loops   byte
}

// FastSwitchConfig describes a fast-switch antenna inventory: four antenna
// slots visited in order, a pause between switches and a repeat count.
type FastSwitchConfig struct {
	Steps    [4]FastSwitchStep
	Interval byte // ms between antenna switches
	Repeat   byte
}

// DefaultFastSwitchConfig inventories antenna 1 only, once.
func DefaultFastSwitchConfig() FastSwitchConfig {
	return FastSwitchConfig{
		Steps: [4]FastSwitchStep{
			{Antenna: 0, Loops: 1},
			{Antenna: AntennaDisabled, Loops: 1},
			{Antenna: AntennaDisabled, Loops: 1},
			{Antenna: AntennaDisabled, Loops: 1},
		},
		Interval: 0,
		Repeat:   1,
	}
}

func checkAntenna(antenna int) error {
	if antenna < 0 || antenna > MaxAntenna {
		return invalidArg("antenna", antenna, "must be 0-%d", MaxAntenna)
	}
	return nil
}

func checkRepeat(repeat int) error {
	if repeat < 1 || repeat > 0xFF {
		return invalidArg("repeat", repeat, "must be 1-255")
	}
	return nil
}

// Reset restarts the reader module. The reader does not reply.
func Reset() Request {
	return newRequest(CmdReset)
}

// SetBaudrate selects the UART speed. Only 38400 and 115200 are supported.
func SetBaudrate(baud int) (Request, error) {
	switch baud {
	case 38400:
		return newRequest(CmdSetUartBaudrate, 0x03), nil
	case 115200:
		return newRequest(CmdSetUartBaudrate, 0x04), nil
	}
	return Request{}, invalidArg("baudrate", baud, "must be 38400 or 115200")
}

// SetReaderAddress assigns a new reader address (0-254).
func SetReaderAddress(address int) (Request, error) {
	if address < 0 || address > MaxReaderAddress {
		return Request{}, invalidArg("address", address, "must be 0-%d", MaxReaderAddress)
	}
	return newRequest(CmdSetReaderAddress, byte(address)), nil
}

// GetFirmwareVersion queries the firmware major and minor version.
func GetFirmwareVersion() Request {
	return newRequest(CmdGetFirmwareVersion)
}

// SetWorkAntenna selects the antenna used by single-antenna inventories.
func SetWorkAntenna(antenna int) (Request, error) {
	if err := checkAntenna(antenna); err != nil {
		return Request{}, err
	}
	return newRequest(CmdSetWorkAntenna, byte(antenna)), nil
}

// GetWorkAntenna queries the selected antenna.
func GetWorkAntenna() Request {
	return newRequest(CmdGetWorkAntenna)
}

// SetRFPower sets the output power, in dBm, of each of the four antennas.
func SetRFPower(ant1, ant2, ant3, ant4 int) (Request, error) {
	payload := make([]byte, 0, 4)
	for _, p := range []int{ant1, ant2, ant3, ant4} {
		if p < 0 || p > MaxRFPower {
			return Request{}, invalidArg("rf power", p, "must be 0-%d dBm", MaxRFPower)
		}
		payload = append(payload, byte(p))
	}
	return newRequest(CmdSetRFPower, payload...), nil
}

// GetRFPower queries the output power of each antenna.
func GetRFPower() Request {
	return newRequest(CmdGetRFPower)
}

// SetTemporaryPower changes the output power without storing it in flash.
func SetTemporaryPower(dbm int) (Request, error) {
	if dbm < MinTemporaryPower || dbm > MaxRFPower {
		return Request{}, invalidArg("temporary power", dbm, "must be %d-%d dBm", MinTemporaryPower, MaxRFPower)
	}
	return newRequest(CmdSetTemporaryOutputPower, byte(dbm)), nil
}

// SetBeeperMode sets the buzzer: 0 quiet, 1 after each inventory round, 2
// on every tag read.
func SetBeeperMode(mode int) (Request, error) {
	if mode < 0 || mode > MaxBeeperMode {
		return Request{}, invalidArg("beeper mode", mode, "must be 0-%d", MaxBeeperMode)
	}
	return newRequest(CmdSetBeeperMode, byte(mode)), nil
}

// SetAntConnectionDetector sets the return-loss threshold, in dB, used to
// detect a missing antenna. Zero disables detection.
func SetAntConnectionDetector(lossDB int) (Request, error) {
	if lossDB < 0 || lossDB > 0xFF {
		return Request{}, invalidArg("detector threshold", lossDB, "must be 0-255 dB")
	}
	return newRequest(CmdSetAntConnectionDetector, byte(lossDB)), nil
}

// GetAntConnectionDetector queries the antenna detector threshold.
func GetAntConnectionDetector() Request {
	return newRequest(CmdGetAntConnectionDetector)
}

// SetReaderIdentifier stores a 12 byte identifier, padded with 0xFF.
func SetReaderIdentifier(id string) (Request, error) {
	if len(id) > IdentifierLength {
		return Request{}, invalidArg("identifier", id, "must be at most %d bytes", IdentifierLength)
	}
	payload := make([]byte, IdentifierLength)
	n := copy(payload, id)
	for i := n; i < IdentifierLength; i++ {
		payload[i] = 0xFF
	}
	return newRequest(CmdSetReaderIdentifier, payload...), nil
}

// GetReaderIdentifier queries the stored identifier.
func GetReaderIdentifier() Request {
	return newRequest(CmdGetReaderIdentifier)
}

// RF link profiles supported by the R2000 (Miller/Tari combinations).
const (
	LinkProfile0 byte = 0xD0
	LinkProfile1 byte = 0xD1
	LinkProfile2 byte = 0xD2
	LinkProfile3 byte = 0xD3
)

// SetRFLinkProfile selects one of the four RF link profiles (0xD0-0xD3).
func SetRFLinkProfile(profile byte) (Request, error) {
	if profile < LinkProfile0 || profile > LinkProfile3 {
		return Request{}, invalidArg("link profile", profile, "must be 0xD0-0xD3")
	}
	return newRequest(CmdSetRFLinkProfile, profile), nil
}

// GetRFLinkProfile queries the RF link profile.
func GetRFLinkProfile() Request {
	return newRequest(CmdGetRFLinkProfile)
}

// GetReaderTemperature queries the module temperature.
func GetReaderTemperature() Request {
	return newRequest(CmdGetReaderTemp)
}

// GPIORead queries the input pins. Ports 1 and 2 are readable; both are
// reported by the same reply.
func GPIORead(port int) (Request, error) {
	if port != 1 && port != 2 {
		return Request{}, invalidArg("gpio port", port, "only ports 1 and 2 can be read")
	}
	return newRequest(CmdGetGPIOValue), nil
}

// GPIOWrite drives output port 3 or 4 high or low.
func GPIOWrite(port int, high bool) (Request, error) {
	if port != 3 && port != 4 {
		return Request{}, invalidArg("gpio port", port, "only ports 3 and 4 can be written")
	}
	var level byte
	if high {
		level = 0x01
	}
	return newRequest(CmdSetGPIOValue, byte(port), level), nil
}

// Inventory runs a buffered inventory; tags accumulate in the reader's
// inventory buffer and the reply summarizes the round.
func Inventory(repeat int) (Request, error) {
	if err := checkRepeat(repeat); err != nil {
		return Request{}, err
	}
	return newRequest(CmdInventory, byte(repeat)), nil
}

// RealTimeInventory runs an inventory on the work antenna reporting every
// tag as an event.
func RealTimeInventory(repeat int) (Request, error) {
	if err := checkRepeat(repeat); err != nil {
		return Request{}, err
	}
	return newRequest(CmdRealTimeInventory, byte(repeat)), nil
}

// SessionInventory runs a real-time inventory with an explicit session and
// target flag.
func SessionInventory(session Session, target Target, repeat int) (Request, error) {
	if session > SessionS3 {
		return Request{}, invalidArg("session", session, "must be 0-3")
	}
	if target > TargetB {
		return Request{}, invalidArg("target", target, "must be A (0) or B (1)")
	}
	if err := checkRepeat(repeat); err != nil {
		return Request{}, err
	}
	return newRequest(CmdSessionTargetInventory, byte(session), byte(target), byte(repeat)), nil
}

// FastSwitchInventory cycles through up to four antennas reporting every tag
// as an event.
func FastSwitchInventory(cfg FastSwitchConfig) (Request, error) {
	payload := make([]byte, 0, 10)
	enabled := 0
	for i, step := range cfg.Steps {
		if step.Antenna != AntennaDisabled {
			if step.Antenna > MaxAntenna {
				return Request{}, invalidArg("fast switch antenna", step.Antenna, "slot %d must be 0-%d or disabled", i, MaxAntenna)
			}
			enabled++
		}
		payload = append(payload, step.Antenna, step.Loops)
	}
	if enabled == 0 {
		return Request{}, invalidArg("fast switch antennas", cfg.Steps, "at least one slot must be enabled")
	}
	payload = append(payload, cfg.Interval, cfg.Repeat)
	return newRequest(CmdFastSwitchAntInventory, payload...), nil
}

// ISO6BInventory runs an ISO 18000-6B inventory.
func ISO6BInventory() Request {
	return newRequest(CmdISO6BInventory)
}

// GetInventoryBuffer reads the buffered tags without clearing them. The
// reader replies with one frame per tag.
func GetInventoryBuffer() Request {
	return newRequest(CmdGetInventoryBuffer)
}

// GetAndResetInventoryBuffer reads and clears the buffered tags.
func GetAndResetInventoryBuffer() Request {
	return newRequest(CmdGetAndResetInventoryBuffer)
}

// GetInventoryBufferTagCount queries the number of buffered tags.
func GetInventoryBufferTagCount() Request {
	return newRequest(CmdGetInventoryBufferTagCount)
}

// ResetInventoryBuffer clears the inventory buffer.
func ResetInventoryBuffer() Request {
	return newRequest(CmdResetInventoryBuffer)
}

// SetAccessEPCMatch selects the tag addressed by subsequent access commands.
// Mode 0 enables matching on epc, mode 1 clears the match.
func SetAccessEPCMatch(mode int, epc []byte) (Request, error) {
	if mode != 0 && mode != 1 {
		return Request{}, invalidArg("epc match mode", mode, "must be 0 (match) or 1 (clear)")
	}
	if mode == 0 && len(epc) == 0 {
		return Request{}, invalidArg("epc", "", "must not be empty when matching")
	}
	if len(epc) > MaxEPCLength {
		return Request{}, invalidArg("epc length", len(epc), "must be at most %d bytes", MaxEPCLength)
	}
	payload := make([]byte, 0, len(epc)+2)
	payload = append(payload, byte(mode), byte(len(epc)))
	payload = append(payload, epc...)
	return newAccessRequest(CmdSetAccessEPCMatch, payload), nil
}

// GetAccessEPCMatch queries the active EPC match.
func GetAccessEPCMatch() Request {
	return newRequest(CmdGetAccessEPCMatch)
}

// ReadTag reads words 16-bit words from bank starting at word address addr.
func ReadTag(bank MemoryBank, addr byte, words int, pwd Password) (Request, error) {
	if bank > BankUser {
		return Request{}, invalidArg("memory bank", bank, "must be 0-3")
	}
	if words < 1 || words > 0xFFFF {
		return Request{}, invalidArg("word count", words, "must be 1-65535")
	}
	payload := []byte{byte(bank), addr, byte(words >> 8), byte(words)}
	payload = append(payload, pwd[:]...)
	return newAccessRequest(CmdRead, payload), nil
}

func writePayload(bank MemoryBank, addr byte, data []byte, pwd Password) ([]byte, error) {
	if bank > BankUser {
		return nil, invalidArg("memory bank", bank, "must be 0-3")
	}
	if len(data) == 0 || len(data)%2 != 0 {
		return nil, invalidArg("data length", len(data), "must be a non-zero whole number of 16-bit words")
	}
	words := len(data) / 2
	payload := make([]byte, 0, len(data)+8)
	payload = append(payload, pwd[:]...)
	payload = append(payload, byte(bank), addr, byte(words>>8), byte(words))
	payload = append(payload, data...)
	if len(payload) > MaxPayloadSize {
		return nil, invalidArg("data length", len(data), "must fit a %d byte payload", MaxPayloadSize)
	}
	return payload, nil
}

// WriteTag writes data (an even number of bytes) to bank at word address
// addr.
func WriteTag(bank MemoryBank, addr byte, data []byte, pwd Password) (Request, error) {
	payload, err := writePayload(bank, addr, data, pwd)
	if err != nil {
		return Request{}, err
	}
	return newAccessRequest(CmdWrite, payload), nil
}

// WriteBlock is WriteTag using the block-write command.
func WriteBlock(bank MemoryBank, addr byte, data []byte, pwd Password) (Request, error) {
	payload, err := writePayload(bank, addr, data, pwd)
	if err != nil {
		return Request{}, err
	}
	return newAccessRequest(CmdWriteBlock, payload), nil
}

// LockTag applies action to region of the matched tag.
func LockTag(region LockRegion, action LockAction, pwd Password) (Request, error) {
	if region < LockUser || region > LockKillPassword {
		return Request{}, invalidArg("lock region", region, "must be 1-5")
	}
	if action > LockLockForever {
		return Request{}, invalidArg("lock action", action, "must be 0-3")
	}
	payload := append(pwd[:], byte(region), byte(action))
	return newAccessRequest(CmdLock, payload), nil
}

// KillTag permanently disables the matched tag.
func KillTag(pwd Password) Request {
	return newAccessRequest(CmdKill, append([]byte(nil), pwd[:]...))
}

// SetFrequencyRegion selects a system region hopping between the table
// channels startIdx and endIdx inclusive.
func SetFrequencyRegion(region Region, startIdx, endIdx int) (Request, error) {
	if region < RegionFCC || region > RegionCHN {
		return Request{}, invalidArg("region", region, "must be FCC, ETSI or CHN; use SetUserFrequencyRegion for USER")
	}
	last := len(FrequencyTable) - 1
	if startIdx < 0 || startIdx > last {
		return Request{}, invalidArg("start frequency index", startIdx, "must be 0-%d", last)
	}
	if endIdx < startIdx || endIdx > last {
		return Request{}, invalidArg("end frequency index", endIdx, "must be %d-%d", startIdx, last)
	}
	return newRequest(CmdSetFrequencyRegion, byte(region), byte(startIdx), byte(endIdx)), nil
}

// SetFrequencyRegionMHz is SetFrequencyRegion with the band edges given as
// exact table frequencies.
func SetFrequencyRegionMHz(region Region, startMHz, endMHz float64) (Request, error) {
	start, err := FrequencyIndex(startMHz)
	if err != nil {
		return Request{}, err
	}
	end, err := FrequencyIndex(endMHz)
	if err != nil {
		return Request{}, err
	}
	return SetFrequencyRegion(region, start, end)
}

// SetUserFrequencyRegion defines a custom hop table: quantity channels
// spacingKHz apart starting at startKHz. Spacing is sent in 10 kHz units.
func SetUserFrequencyRegion(startKHz, spacingKHz, quantity int) (Request, error) {
	if startKHz <= 0 || startKHz > 0xFFFFFF {
		return Request{}, invalidArg("start frequency", startKHz, "must be 1-%d kHz", 0xFFFFFF)
	}
	if spacingKHz <= 0 || spacingKHz%10 != 0 || spacingKHz/10 > 0xFF {
		return Request{}, invalidArg("channel spacing", spacingKHz, "must be a multiple of 10 kHz up to 2550 kHz")
	}
	if quantity < 1 || quantity > 0xFF {
		return Request{}, invalidArg("channel quantity", quantity, "must be 1-255")
	}
	return newRequest(CmdSetFrequencyRegion,
		byte(RegionUser), byte(spacingKHz/10), byte(quantity),
		byte(startKHz>>16), byte(startKHz>>8), byte(startKHz)), nil
}

// GetFrequencyRegion queries the frequency region.
func GetFrequencyRegion() Request {
	return newRequest(CmdGetFrequencyRegion)
}

// GetRFPortReturnLoss measures the return loss of the work antenna port at
// an exact table frequency.
func GetRFPortReturnLoss(mhz float64) (Request, error) {
	idx, err := FrequencyIndex(mhz)
	if err != nil {
		return Request{}, err
	}
	return newRequest(CmdGetRFPortReturnLoss, byte(idx)), nil
}

// Impinj FastTID switch values
const (
	FastTIDOff byte = 0x00
	FastTIDOn  byte = 0x8D
)

// SetImpinjFastTID enables or disables Impinj Monza FastTID reporting. With
// save set the setting survives a reset.
func SetImpinjFastTID(enable, save bool) Request {
	value := FastTIDOff
	if enable {
		value = FastTIDOn
	}
	if save {
		return newRequest(CmdSetAndSaveImpinjFastTID, value)
	}
	return newRequest(CmdSetImpinjFastTID, value)
}

// GetImpinjFastTID queries the FastTID setting.
func GetImpinjFastTID() Request {
	return newRequest(CmdGetImpinjFastTID)
}
