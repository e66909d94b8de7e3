package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fgravato/falcon-rtr/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	iocFile           string
	iocShareLevel     string
	iocExpirationDays int
	iocSource         string
	iocDescription    string
)

var iocCmd = &cobra.Command{
	Use:   "ioc",
	Short: "Manage custom indicators of compromise",
}

var iocUploadCmd = &cobra.Command{
	Use:   "upload --file FILE",
	Short: "Upload indicators from a CSV file",
	Long: `Upload indicators from a CSV file with two columns, type and value:

  type,value
  domain,bad.example
  sha256,0f3c...

A header row is optional. Lines starting with # are ignored. Every indicator
is created with the detect policy and the share level, expiration, source
and description given by flags.`,
	Args: cobra.NoArgs,
	RunE: runIOCUpload,
}

func init() {
	rootCmd.AddCommand(iocCmd)
	iocCmd.AddCommand(iocUploadCmd)

	f := iocUploadCmd.Flags()
	f.StringVar(&iocFile, "file", "", "CSV file of type,value rows")
	f.StringVar(&iocShareLevel, "share-level", "red", "share level")
	f.IntVar(&iocExpirationDays, "expiration-days", 30, "days until the indicators expire")
	f.StringVar(&iocSource, "source", "falcon-rtr", "indicator source")
	f.StringVar(&iocDescription, "description", "", "indicator description")
	_ = iocUploadCmd.MarkFlagRequired("file")
}

func runIOCUpload(cmd *cobra.Command, args []string) error {
	if iocExpirationDays < 0 {
		return fmt.Errorf("--expiration-days must not be negative")
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	f, err := os.Open(iocFile)
	if err != nil {
		return fmt.Errorf("opening IOC file: %w", err)
	}
	defer f.Close()

	iocs, err := readIOCs(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", iocFile, err)
	}
	a.logger.Info("Uploading indicators", zap.Int("count", len(iocs)), zap.String("file", iocFile))

	created, err := a.client().UploadIOCs(cmd.Context(), iocs, api.IOCOptions{
		ShareLevel:     iocShareLevel,
		ExpirationDays: iocExpirationDays,
		Source:         iocSource,
		Description:    iocDescription,
	})
	if err != nil {
		return fmt.Errorf("uploading indicators: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), created)
}

// readIOCs parses type,value rows. A first row of exactly "type,value" is
// treated as a header.
func readIOCs(r io.Reader) ([]api.IOC, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var iocs []api.IOC
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		typ := strings.TrimSpace(record[0])
		value := strings.TrimSpace(record[1])
		if line == 1 && strings.EqualFold(typ, "type") && strings.EqualFold(value, "value") {
			continue
		}
		if typ == "" || value == "" {
			return nil, fmt.Errorf("record %d: type and value are required", line)
		}
		iocs = append(iocs, api.IOC{Type: typ, Value: value})
	}
	return iocs, nil
}
