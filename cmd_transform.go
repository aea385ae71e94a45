package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourusername/jejecipher/internal/cipher"
	"github.com/yourusername/jejecipher/internal/config"
	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/history"
	"github.com/yourusername/jejecipher/internal/transform"
)

var (
	record  bool
	explain bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode [text...]",
	Short: "Encode text (reads stdin when no text is given)",
	Example: `  jejecipher encode hello world
  echo "cat" | jejecipher encode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, db.ModeEncode, args)
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode [text...]",
	Short: "Decode text (reads stdin when no text is given)",
	Example: `  jejecipher decode '7~4₵(C)'
  jejecipher encode hello | jejecipher decode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, db.ModeDecode, args)
	},
}

var legendCmd = &cobra.Command{
	Use:   "legend",
	Short: "Print the letter to symbol table",
	RunE: func(cmd *cobra.Command, args []string) error {
		printLegend(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{encodeCmd, decodeCmd} {
		c.Flags().BoolVar(&record, "record", false, "Store the result in the history database")
		c.Flags().BoolVar(&explain, "explain", false, "Print each word's tokens")
	}
}

// runTransform handles encode and decode. Each input line is transformed on
// its own so piped text keeps its line structure.
func runTransform(cmd *cobra.Command, mode string, args []string) error {
	var lines []string
	if len(args) > 0 {
		lines = []string{strings.Join(args, " ")}
	} else {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		lines = strings.Split(strings.TrimRight(string(b), "\r\n"), "\n")
	}

	var rec transform.Recorder
	if record {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		database, err := db.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(); err != nil {
			return err
		}
		rec = history.New(database)
	}
	svc := transform.New(logger, rec, nil, nil, transform.Options{})

	out := cmd.OutOrStdout()
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		res, err := svc.Run(context.Background(), mode, transform.Request{Text: line, Source: transform.SourceCLI})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Output)
		if explain {
			printTokens(out, mode, line)
		}
	}
	return nil
}

func printTokens(w io.Writer, mode, line string) {
	for _, word := range strings.Split(line, " ") {
		var toks []string
		if mode == db.ModeEncode {
			toks = cipher.WordTokens(word)
		} else {
			toks = cipher.Tokenize(word)
		}
		fmt.Fprintf(w, "  %-16q %s\n", word, strings.Join(toks, " "))
	}
}

func printLegend(w io.Writer) {
	for i, e := range cipher.Legend() {
		fmt.Fprintf(w, "%s  %-4s", e.Letter, e.Symbol)
		if i%6 == 5 {
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\n%-4s consonant start\n%-4s vowel start\n%-4s after each vowel\n%-4s five letters or more\n",
		cipher.PrefixConsonant, cipher.PrefixVowel, cipher.VowelMarker, cipher.LengthSuffix)
}
