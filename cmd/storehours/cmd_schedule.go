/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/storehours/internal/models"
	"github.com/friendsincode/storehours/internal/scheduling"
	"github.com/friendsincode/storehours/internal/storefront"
)

var (
	scheduleFile  string
	scheduleActor string
)

// scheduleDoc is one merchant's weekly hours in a schedule file.
type scheduleDoc struct {
	MerchantID     string                 `yaml:"merchant_id"`
	SchedulingType string                 `yaml:"scheduling_type"`
	Slots          []scheduling.SlotInput `yaml:"slots"`
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Validate or apply weekly schedules from YAML",
	Long: `Work with merchant weekly schedules stored as YAML. A file may hold
several documents separated by "---", one per merchant:

  merchant_id: m-100
  scheduling_type: WEEKDAYS_AND_WEEKENDS
  slots:
    - {slot_name: weekdays, start_time: "0900", end_time: "1800"}
    - {slot_name: weekends, start_time: "1000", end_time: "1400"}
`,
}

var scheduleCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate schedule documents without touching the database",
	RunE:  runScheduleCheck,
}

var scheduleApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Replace merchant schedules from a file",
	Long: `Validate every document, then replace each merchant's schedule and
refresh its cached availability. Nothing is written if any document is invalid.

Example:
  storehours schedule apply -f hours.yaml --actor admin:ops
`,
	RunE: runScheduleApply,
}

func init() {
	for _, c := range []*cobra.Command{scheduleCheckCmd, scheduleApplyCmd} {
		c.Flags().StringVarP(&scheduleFile, "file", "f", "", "Schedule YAML file (- for stdin)")
		_ = c.MarkFlagRequired("file")
	}
	scheduleApplyCmd.Flags().StringVar(&scheduleActor, "actor", "admin:cli", "Actor recorded in the audit log (kind:id)")

	scheduleCmd.AddCommand(scheduleCheckCmd, scheduleApplyCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func openScheduleFile(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// readScheduleDocs decodes every YAML document in r.
func readScheduleDocs(r io.Reader) ([]scheduleDoc, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var docs []scheduleDoc
	for {
		var doc scheduleDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(docs)+1, err)
		}
		if strings.TrimSpace(doc.MerchantID) == "" {
			return nil, fmt.Errorf("document %d: merchant_id is required", len(docs)+1)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, errors.New("no schedule documents found")
	}
	return docs, nil
}

// checkScheduleDocs validates each document and reports every failure.
func checkScheduleDocs(docs []scheduleDoc, validator *scheduling.Validator, out io.Writer) (int, error) {
	seen := make(map[string]bool, len(docs))
	failed := 0
	for _, doc := range docs {
		if seen[doc.MerchantID] {
			fmt.Fprintf(out, "%s: duplicate merchant_id\n", doc.MerchantID)
			failed++
			continue
		}
		seen[doc.MerchantID] = true

		st, err := scheduling.ParseSchedulingType(doc.SchedulingType)
		if err == nil {
			_, err = validator.Validate(st, doc.Slots)
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", doc.MerchantID, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s: ok\n", doc.MerchantID)
	}
	if failed > 0 {
		return failed, fmt.Errorf("%d of %d schedules invalid", failed, len(docs))
	}
	return 0, nil
}

func loadScheduleDocs() ([]scheduleDoc, error) {
	f, err := openScheduleFile(scheduleFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readScheduleDocs(f)
}

func runScheduleCheck(cmd *cobra.Command, args []string) error {
	docs, err := loadScheduleDocs()
	if err != nil {
		return err
	}
	_, err = checkScheduleDocs(docs, scheduling.NewValidator(zerolog.Nop()), cmd.OutOrStdout())
	return err
}

func runScheduleApply(cmd *cobra.Command, args []string) error {
	actor, err := models.ParseActor(scheduleActor)
	if err != nil {
		return fmt.Errorf("invalid --actor: %w", err)
	}

	docs, err := loadScheduleDocs()
	if err != nil {
		return err
	}
	if _, err := checkScheduleDocs(docs, scheduling.NewValidator(zerolog.Nop()), io.Discard); err != nil {
		return err
	}

	srv, err := openHeadless()
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx := storefront.WithActor(cmd.Context(), actor)
	svc := srv.Storefront()
	for _, doc := range docs {
		st, _ := scheduling.ParseSchedulingType(doc.SchedulingType)
		if _, err := svc.ReplaceSchedule(ctx, doc.MerchantID, st, doc.Slots); err != nil {
			return fmt.Errorf("apply %s: %w", doc.MerchantID, err)
		}
		logger.Info().Str("merchant_id", doc.MerchantID).Str("scheduling_type", string(st)).Msg("schedule applied")
		fmt.Fprintf(cmd.OutOrStdout(), "%s: applied\n", doc.MerchantID)
	}
	return nil
}
