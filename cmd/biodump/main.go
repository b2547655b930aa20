// biodump inspects files of length-prefixed binary frames.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oy3o/binio"
)

var (
	logger      *zap.Logger
	verbose     bool
	profilePath string
)

var rootCmd = &cobra.Command{
	Use:   "biodump",
	Short: "Inspect length-prefixed binary frame files",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewDevelopmentConfig()
		if !verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = cfg.Build()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var framesCmd = &cobra.Command{
	Use:   "frames [file]",
	Short: "Print offset, length, and digest of each frame",
	Long: `frames walks a file (or stdin) of length-prefixed frames and prints
one line per frame: start offset, payload length, xxh3 digest, and a hex
preview of the payload. The prefix format comes from --profile.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadProfile(profilePath)
		if err != nil {
			return err
		}
		format, err := profile.lengthFormat()
		if err != nil {
			return err
		}
		order, err := profile.byteOrder()
		if err != nil {
			return err
		}
		in := io.Reader(os.Stdin)
		name := "stdin"
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
			name = args[0]
		}
		logger.Info("dumping frames",
			zap.String("file", name),
			zap.String("length", profile.Length))
		return dumpFrames(cmd.OutOrStdout(), in, format, order, profile)
	},
}

func dumpFrames(out io.Writer, in io.Reader, format binio.LengthFormat, order binary.ByteOrder, profile Profile) error {
	r, err := binio.NewReader(in)
	if err != nil {
		return err
	}
	r.WithByteOrder(order)
	for i := 0; profile.MaxFrames == 0 || i < profile.MaxFrames; i++ {
		off := r.Count()
		block, err := r.ReadBlock(format)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("frame %d at offset %d: %w", i, off, err)
		}
		payload := block.Bytes()
		preview := payload
		if len(preview) > profile.Preview {
			preview = preview[:profile.Preview]
		}
		fmt.Fprintf(out, "%8d  %8d  %016x  %s\n",
			off, block.Len(), xxh3.Hash(payload), hex.EncodeToString(preview))
		block.Release()
	}
	return nil
}

var varintCmd = &cobra.Command{
	Use:   "varint <hex>",
	Short: "Decode a compressed length from hex bytes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
		if err != nil {
			return err
		}
		v, n, err := binio.Uncompress(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "value=%d bytes=%d\n", v, n)
		if n < len(raw) {
			logger.Warn("trailing bytes ignored", zap.Int("count", len(raw)-n))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	framesCmd.Flags().StringVar(&profilePath, "profile", "", "YAML profile describing the frame format")
	rootCmd.AddCommand(framesCmd, varintCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
