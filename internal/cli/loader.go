package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/roach88/agentcontract/internal/catalog"
	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/engine"
	"github.com/roach88/agentcontract/internal/logging"
	"github.com/roach88/agentcontract/internal/observe"
	"github.com/roach88/agentcontract/internal/store"
)

// session bundles what a command needs to call the engine: a sealed
// engine over the configured catalog, wrapped in a recorder that logs
// outcomes and, when an audit log is configured, persists them.
type session struct {
	engine   *engine.Engine
	recorder *observe.Recorder
	catalog  *catalog.Catalog
	logger   *slog.Logger
	store    *store.Store
}

// openSession loads the catalog and seals a fresh engine. The caller must
// Close the session.
func openSession(opts *RootOptions, f *OutputFormatter) (*session, error) {
	logger, err := newLogger(opts, f.GetErrWriter())
	if err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	cat, err := loadCatalog(opts)
	if err != nil {
		return nil, catalogLoadError(f, err)
	}
	f.VerboseLog("Loaded catalog %s (%d types)", cat.Source, len(cat.Types()))

	engOpts := []engine.Option{engine.WithClockSkew(opts.Config.ClockSkew)}
	if opts.clock != nil {
		engOpts = append(engOpts, engine.WithClock(opts.clock))
	}
	eng := engine.New(engOpts...)
	if err := eng.LoadCatalog(cat); err != nil {
		return nil, catalogLoadError(f, err)
	}
	eng.Seal()

	s := &session{engine: eng, catalog: cat, logger: logger}
	sinks := observe.Multi{observe.NewSlogSink(logger)}
	if path := opts.auditPath(); path != "" {
		st, err := store.Open(path)
		if err != nil {
			return nil, f.fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("failed to open audit log %s: %v", path, err), nil)
		}
		f.VerboseLog("Recording outcomes to %s", path)
		s.store = st
		sinks = append(sinks, st)
	}
	s.recorder = observe.NewRecorder(eng, sinks, observe.WithLogger(logger))
	return s, nil
}

// Close releases the audit store, if any.
func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// loadCatalog loads the --catalog file, falling back to the environment
// and then the built-in catalog.
func loadCatalog(opts *RootOptions) (*catalog.Catalog, error) {
	if opts.Catalog != "" {
		return catalog.Load(opts.Catalog)
	}
	return opts.Config.LoadCatalog()
}

// catalogLoadError reports a catalog that could not be loaded or applied.
func catalogLoadError(f *OutputFormatter, err error) error {
	code := ErrCodeLoadFailed
	if errors.Is(err, fs.ErrNotExist) {
		code = ErrCodeNotFound
	}
	var verrs catalog.ValidationErrors
	if errors.As(err, &verrs) {
		return f.fail(ExitCommandError, code, "catalog is invalid", verrs)
	}
	return f.fail(ExitCommandError, code, err.Error(), nil)
}

// newLogger returns a debug logger on w in verbose mode and a discarding
// logger otherwise.
func newLogger(opts *RootOptions, w io.Writer) (*slog.Logger, error) {
	if !opts.Verbose {
		return logging.Discard(), nil
	}
	return logging.New(logging.Options{
		Level:     "debug",
		Format:    opts.Config.LogFormat,
		Output:    w,
		Component: "agentcontract",
	})
}

// readEnvelope decodes the envelope in path, or stdin for "-".
func readEnvelope(path string, stdin io.Reader) (contract.Envelope, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return contract.Envelope{}, err
	}
	return contract.DecodeEnvelope(data)
}

// envelopeInputError reports an envelope that could not be read or decoded.
func envelopeInputError(f *OutputFormatter, path string, err error) error {
	var ce *contract.Error
	if errors.As(err, &ce) {
		return f.fail(ExitFailure, string(ce.Kind), ce.Message, fieldDetails(ce.Field))
	}
	code := ErrCodeReadFailed
	if errors.Is(err, fs.ErrNotExist) {
		code = ErrCodeNotFound
	}
	return f.fail(ExitCommandError, code, fmt.Sprintf("failed to read envelope %s: %v", path, err), nil)
}

// contractError reports a failed engine call.
func contractError(f *OutputFormatter, err error) error {
	var ce *contract.Error
	if errors.As(err, &ce) {
		return f.fail(ExitFailure, string(ce.Kind), ce.Message, fieldDetails(ce.Field))
	}
	return f.fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
}

func fieldDetails(field string) any {
	if field == "" {
		return nil
	}
	return map[string]string{"field": field}
}
