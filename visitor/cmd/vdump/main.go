// Command vdump prints and converts visitor documents.
//
//	vdump [flags] [files...]
//
// With no files the document is read from standard input. Documents can
// also be read from and written to a document store with --store.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/FyroxEngine/Fyrox-sub011/internal/config"
	"github.com/FyroxEngine/Fyrox-sub011/internal/log"
	"github.com/FyroxEngine/Fyrox-sub011/internal/metrics"
	"github.com/FyroxEngine/Fyrox-sub011/store"
	"github.com/FyroxEngine/Fyrox-sub011/visitor"
)

type options struct {
	Spew    bool       `mapstructure:"spew"`
	JSON    bool       `mapstructure:"json"`
	YAML    bool       `mapstructure:"yaml"`
	Quiet   bool       `mapstructure:"quiet"`
	To      string     `mapstructure:"to"`
	Output  string     `mapstructure:"output"`
	Indent  string     `mapstructure:"indent"`
	Store   string     `mapstructure:"store"`
	Put     string     `mapstructure:"put"`
	Get     string     `mapstructure:"get"`
	List    bool       `mapstructure:"list"`
	Metrics bool       `mapstructure:"metrics"`
	Log     log.Config `mapstructure:"log"`
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("vdump", pflag.ContinueOnError)
	fs.String("config", "", "configuration file (yaml or json)")
	fs.Bool("spew", false, "dump the decoded tree with go-spew")
	fs.Bool("json", false, "print the tree as json")
	fs.Bool("yaml", false, "print the tree as yaml")
	fs.BoolP("quiet", "q", false, "do not print the tree")
	fs.String("to", "", "convert to this format (ascii or binary)")
	fs.StringP("output", "o", "", "write the converted document here instead of stdout")
	fs.String("indent", "\t", "indentation of ascii output")
	fs.String("store", "", "document store database")
	fs.String("put", "", "save the document in the store under this name")
	fs.String("get", "", "load the document from the store instead of files")
	fs.Bool("list", false, "list the documents of the store")
	fs.Bool("metrics", false, "print codec and store metrics on exit")
	fs.String("log.level", "warn", "log level")
	fs.String("log.format", "console", "log format (console or json)")
	return fs
}

func loadOptions(args []string) (*options, []string, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg := config.New("VDUMP")
	if path, _ := fs.GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, nil, err
		}
	}
	if err := cfg.BindFlags(fs); err != nil {
		return nil, nil, err
	}
	var opts options
	if err := cfg.Unmarshal(&opts); err != nil {
		return nil, nil, errors.Wrap(err, "decoding options")
	}
	return &opts, fs.Args(), nil
}

type input struct {
	name string
	data []byte
}

func readInputs(args []string, stdin io.Reader) ([]input, error) {
	if len(args) == 0 {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, "reading stdin")
		}
		return []input{{"stdin", b}}, nil
	}
	var in []input
	for _, arg := range args {
		b, err := os.ReadFile(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", arg)
		}
		in = append(in, input{arg, b})
	}
	return in, nil
}

func printTree(w io.Writer, v *visitor.Visitor) error {
	return v.Walk(func(_ visitor.Handle, n *visitor.Node, depth int) error {
		pad := strings.Repeat("  ", depth)
		if _, err := fmt.Fprintln(w, pad+n.Name()); err != nil {
			return err
		}
		for _, f := range n.Fields() {
			if _, err := fmt.Fprintf(w, "%s  - %s\n", pad, f); err != nil {
				return err
			}
		}
		return nil
	})
}

func process(opts *options, name string, v *visitor.Visitor, st *store.Store, stdout io.Writer) error {
	logger := log.With(zap.String("document", name))
	logger.Debug("processing", zap.Uint32("version", uint32(v.Version())), zap.Int("nodes", v.NodeCount()))

	switch {
	case opts.Quiet:
	case opts.Spew:
		spew.Fdump(stdout, v)
	case opts.JSON:
		if err := writeJSON(stdout, v); err != nil {
			return err
		}
	case opts.YAML:
		if err := writeYAML(stdout, v); err != nil {
			return err
		}
	default:
		if err := printTree(stdout, v); err != nil {
			return err
		}
	}

	if opts.To != "" {
		f, err := visitor.ParseFormat(opts.To)
		if err != nil {
			return err
		}
		b, err := v.Encode(f)
		if err != nil {
			return errors.Wrapf(err, "converting %s", name)
		}
		if opts.Output != "" {
			if err := os.WriteFile(opts.Output, b, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", opts.Output)
			}
		} else if _, err := stdout.Write(b); err != nil {
			return err
		}
	}

	if opts.Put != "" {
		f := visitor.FormatBinary
		if opts.To != "" {
			f, _ = visitor.ParseFormat(opts.To)
		}
		info, err := st.Put(opts.Put, v, f)
		if err != nil {
			return err
		}
		logger.Info("stored", zap.String("name", opts.Put), zap.Int("bytes", info.Size))
	}
	return nil
}

var registry = prometheus.NewRegistry()

func printMetrics(g prometheus.Gatherer, w io.Writer) {
	mfs, err := g.Gather()
	if err != nil {
		log.Warn("gathering metrics", zap.Error(err))
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			value := m.GetCounter().GetValue()
			if h := m.GetHistogram(); h != nil {
				value = float64(h.GetSampleCount())
			}
			fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	opts, files, err := loadOptions(args)
	if err != nil {
		return err
	}
	logger, props, err := log.InitLogger(&opts.Log)
	if err != nil {
		return err
	}
	log.ReplaceGlobals(logger, props)
	defer log.Sync()

	if opts.Metrics {
		metrics.Register(registry)
		defer printMetrics(registry, stdout)
	}

	vopts := []visitor.Option{visitor.WithLogger(logger)}
	if opts.Indent != "" {
		vopts = append(vopts, visitor.WithIndent(opts.Indent))
	}

	var st *store.Store
	if opts.Store != "" {
		st, err = store.Open(opts.Store, store.Options{Logger: logger})
		if err != nil {
			return err
		}
		defer st.Close()
	} else if opts.Put != "" || opts.Get != "" || opts.List {
		return errors.New("--put, --get and --list need --store")
	}

	if opts.List {
		names, err := st.List()
		if err != nil {
			return err
		}
		for _, name := range names {
			info, err := st.Stat(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s\t%s\tv%d\t%d\t%s\n", name, info.Format, info.Version, info.Size, info.SavedAt.Format(time.RFC3339))
		}
		return nil
	}

	if opts.Get != "" {
		v, _, err := st.Get(opts.Get, vopts...)
		if err != nil {
			return err
		}
		return process(opts, opts.Get, v, st, stdout)
	}

	inputs, err := readInputs(files, stdin)
	if err != nil {
		return err
	}
	for _, in := range inputs {
		v, err := visitor.LoadFromMemory(in.data, vopts...)
		if err != nil {
			return errors.Wrapf(err, "error processing %s", in.name)
		}
		if err := process(opts, in.name, v, st, stdout); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "vdump:", err)
		os.Exit(1)
	}
}
