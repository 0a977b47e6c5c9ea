package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/r2k/internal/protocol"
	"github.com/muurk/r2k/internal/ui"
)

// Tag access flags
var (
	epcFlag      string
	bankFlag     string
	wordAddr     int
	wordCount    int
	passwordFlag string
	assumeYes    bool
)

func init() {
	for _, cmd := range []*cobra.Command{readCmd, writeCmd, lockCmd, killCmd} {
		cmd.Flags().StringVar(&epcFlag, "epc", "", "Only access the tag with this EPC (hex)")
		cmd.Flags().StringVar(&passwordFlag, "password", "00000000", "Access password (8 hex digits)")
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{readCmd, writeCmd} {
		cmd.Flags().StringVar(&bankFlag, "bank", "EPC", "Memory bank (RESERVED, EPC, TID, USER)")
		cmd.Flags().IntVar(&wordAddr, "addr", 0, "Start word address")
	}
	readCmd.Flags().IntVar(&wordCount, "words", 0, "Number of 16-bit words to read (default: whole EPC, or 6 TID/USER words)")
	for _, cmd := range []*cobra.Command{lockCmd, killCmd} {
		cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	}
}

// TagAccess is what the tag commands print in JSON.
type TagAccess struct {
	Operation string                 `json:"operation"`
	Record    *protocol.BufferRecord `json:"record"`
}

func parseEPC(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil || len(b) == 0 || len(b)%2 != 0 {
		return nil, fmt.Errorf("invalid EPC %q: must be hex, a whole number of 16-bit words", s)
	}
	return b, nil
}

func wordAddress() (byte, error) {
	if wordAddr < 0 || wordAddr > 0xFF {
		return 0, fmt.Errorf("invalid --addr %d: must be 0-255", wordAddr)
	}
	return byte(wordAddr), nil
}

// defaultWords is the read length when --words is not given.
func defaultWords(bank protocol.MemoryBank) int {
	switch bank {
	case protocol.BankReserved:
		return 4
	case protocol.BankEPC:
		return 8
	default:
		return 6
	}
}

func reportAccess(s *session, op string, rec *protocol.BufferRecord) error {
	if outputFormat == formatJSON {
		return printJSON(TagAccess{Operation: op, Record: rec})
	}
	details := map[string]string{
		"EPC":     rec.EPC,
		"Antenna": strconv.Itoa(rec.Antenna),
		"Tags":    strconv.Itoa(rec.Count),
	}
	if len(rec.Data) > 0 {
		details["Data"] = strings.ToUpper(hex.EncodeToString(rec.Data))
	}
	if !rec.CRCValid {
		details["CRC"] = "mismatch"
	}
	s.printer.Success(op, details)
	return nil
}

var accessTips = []string{
	"Move the tag closer to the antenna",
	"Check the access password",
	"Run 'r2k inventory' to confirm the EPC",
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read tag memory",
	Long: `Read 16-bit words from a memory bank of one tag. With --epc only that
tag is accessed; otherwise the first tag the reader singulates answers.`,
	Example: `  r2k read --bank TID --words 6
  r2k read --epc E20034120130 --bank USER --addr 0 --words 4`,
	Args: cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		epc, err := parseEPC(epcFlag)
		if err != nil {
			return err
		}
		bank, err := protocol.ParseMemoryBank(bankFlag)
		if err != nil {
			return err
		}
		pwd, err := protocol.ParsePassword(passwordFlag)
		if err != nil {
			return err
		}
		addr, err := wordAddress()
		if err != nil {
			return err
		}
		words := wordCount
		if words == 0 {
			words = defaultWords(bank)
		}

		s.header(cmd, "Read Tag", map[string]string{"Bank": bank.String(), "Words": fmt.Sprintf("%d@%d", words, addr)})
		rec, err := s.client.ReadTag(cmd.Context(), epc, bank, addr, words, pwd)
		if err != nil {
			return s.fail("Read failed", err, accessTips...)
		}
		return reportAccess(s, "Read "+bank.String(), rec)
	}),
}

var writeCmd = &cobra.Command{
	Use:   "write <hex data>",
	Short: "Write tag memory",
	Long: `Write whole 16-bit words to a memory bank of one tag.

Writing the EPC bank at word 2 replaces the EPC; the PC word at word 1
still describes the old length unless it is written too.`,
	Example: `  r2k write --bank USER --addr 0 DEADBEEF
  r2k write --epc E20034120130 --bank EPC --addr 2 300833B2DDD9014000000000`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		epc, err := parseEPC(epcFlag)
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid data %q: %w", args[0], err)
		}
		bank, err := protocol.ParseMemoryBank(bankFlag)
		if err != nil {
			return err
		}
		pwd, err := protocol.ParsePassword(passwordFlag)
		if err != nil {
			return err
		}
		addr, err := wordAddress()
		if err != nil {
			return err
		}

		s.header(cmd, "Write Tag", map[string]string{"Bank": bank.String(), "Address": strconv.Itoa(int(addr))})
		rec, err := s.client.WriteTag(cmd.Context(), epc, bank, addr, data, pwd)
		if err != nil {
			return s.fail("Write failed", err, accessTips...)
		}
		return reportAccess(s, "Wrote "+bank.String(), rec)
	}),
}

var lockCmd = &cobra.Command{
	Use:   "lock <region> <action>",
	Short: "Change a tag's lock state",
	Long: `Lock or unlock a memory region of one tag.

Regions: USER, TID, EPC, ACCESS_PASSWORD, KILL_PASSWORD
Actions: OPEN, LOCK, OPEN_FOREVER, LOCK_FOREVER

The _FOREVER actions are permanent and ask for confirmation.`,
	Example: `  r2k lock EPC LOCK --password 12345678
  r2k lock USER LOCK_FOREVER --epc E20034120130 --password 12345678`,
	Args: cobra.ExactArgs(2),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		epc, err := parseEPC(epcFlag)
		if err != nil {
			return err
		}
		region, err := protocol.ParseLockRegion(args[0])
		if err != nil {
			return err
		}
		action, err := protocol.ParseLockAction(args[1])
		if err != nil {
			return err
		}
		pwd, err := protocol.ParsePassword(passwordFlag)
		if err != nil {
			return err
		}

		permanent := action == protocol.LockOpenForever || action == protocol.LockLockForever
		if permanent && !assumeYes && !confirmed(func() bool {
			return ui.LockConfirmation(os.Stdin, os.Stdout, describeTarget(epcFlag), strings.ToUpper(args[0]))
		}) {
			return fmt.Errorf("lock cancelled")
		}

		s.header(cmd, "Lock Tag", map[string]string{"Region": strings.ToUpper(args[0]), "Action": strings.ToUpper(args[1])})
		rec, err := s.client.LockTag(cmd.Context(), epc, region, action, pwd)
		if err != nil {
			return s.fail("Lock failed", err, accessTips...)
		}
		return reportAccess(s, "Locked "+strings.ToUpper(args[0]), rec)
	}),
}

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Permanently disable a tag",
	Long: `Kill one tag with its kill password. A killed tag never answers a
reader again. Always give --epc unless exactly one tag is in the field.`,
	Example: `  r2k kill --epc E20034120130 --password 87654321`,
	Args:    cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		epc, err := parseEPC(epcFlag)
		if err != nil {
			return err
		}
		pwd, err := protocol.ParsePassword(passwordFlag)
		if err != nil {
			return err
		}
		if pwd == (protocol.Password{}) {
			return fmt.Errorf("a zero kill password cannot kill a tag; give --password")
		}
		if !assumeYes && !confirmed(func() bool { return ui.KillConfirmation(os.Stdin, os.Stdout, describeTarget(epcFlag)) }) {
			return fmt.Errorf("kill cancelled")
		}

		s.header(cmd, "Kill Tag", nil)
		rec, err := s.client.KillTag(cmd.Context(), epc, pwd)
		if err != nil {
			return s.fail("Kill failed", err, accessTips...)
		}
		return reportAccess(s, "Tag killed", rec)
	}),
}

func describeTarget(epc string) string {
	if epc == "" {
		return "(first tag in the field)"
	}
	return strings.ToUpper(epc)
}

// confirmed runs ask when stdin is a terminal. Without one there is nobody
// to ask, so the operation needs --yes.
func confirmed(ask func() bool) bool {
	if !ui.IsTerminal(os.Stdin) {
		fmt.Fprintln(os.Stderr, "Refusing a permanent tag operation without a terminal; pass --yes")
		return false
	}
	return ask()
}
