// Command ply inspects and converts property lists.
package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	plist "github.com/hqtsm/plist-sub000"
)

type options struct {
	Convert string `short:"c" long:"convert" description:"convert the property list to a new format" value-name:"FORMAT" choice:"xml" choice:"binary" choice:"json" choice:"yaml"`
	Output  string `short:"o" long:"out" description:"output file (default: stdout)" value-name:"FILE"`
	Indent  bool   `short:"i" long:"indent" description:"indent JSON output"`
	Dump    bool   `short:"d" long:"dump" description:"print the value tree"`
	Verbose bool   `short:"v" long:"verbose" description:"log codec activity to stderr"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] FILE..."
	files, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
	if len(files) == 0 {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	if opts.Output != "" && len(files) > 1 {
		fmt.Fprintln(os.Stderr, "Error: -o needs a single input file")
		os.Exit(1)
	}

	logger, err := newLogger(opts.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	plist.SetLogger(logger)

	for _, file := range files {
		if err := run(&opts, file); err != nil {
			logger.Debug("failed", zap.String("file", file), zap.Error(err))
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", file, err)
			os.Exit(1)
		}
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(opts *options, file string) error {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return err
	}

	var pval plist.Value
	format, err := plist.Unmarshal(data, &pval)
	if err != nil {
		return err
	}
	plist.Logger().Debug("read", zap.String("file", file), zap.Stringer("format", format))

	if opts.Dump || opts.Convert == "" {
		dump(os.Stdout, pval)
		if opts.Convert == "" {
			return nil
		}
	}

	out, err := convert(pval, opts)
	if err != nil {
		return err
	}
	if opts.Output != "" {
		return os.WriteFile(opts.Output, out, 0o644)
	}
	if opts.Convert == "binary" && term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("refusing to write binary output to a terminal; use -o")
	}
	_, err = os.Stdout.Write(out)
	return err
}

func convert(pval plist.Value, opts *options) ([]byte, error) {
	switch opts.Convert {
	case "xml":
		return plist.EncodeXML(pval, "\t")
	case "binary":
		return plist.EncodeBinary(pval, &plist.BinaryOptions{
			Format:     plist.BinaryFormat,
			Duplicates: plist.CFDuplicates,
		})
	}

	native, err := plist.Native(pval)
	if err != nil {
		return nil, err
	}
	native = portable(native)
	switch opts.Convert {
	case "json":
		var b []byte
		if opts.Indent {
			b, err = json.MarshalIndent(native, "", "\t")
		} else {
			b, err = json.Marshal(native)
		}
		return append(b, '\n'), err
	case "yaml":
		return yaml.Marshal(native)
	}
	return nil, fmt.Errorf("unknown output format %q", opts.Convert)
}

// portable replaces values without a JSON or YAML form.
func portable(v interface{}) interface{} {
	switch v := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case *big.Int:
		return v.String()
	case *plist.UID:
		return map[string]interface{}{"CF$UID": v.Value()}
	case []interface{}:
		for i, e := range v {
			v[i] = portable(e)
		}
	case map[string]interface{}:
		for k, e := range v {
			v[k] = portable(e)
		}
	}
	return v
}
