// Package core runs warm-ups: it turns every registered family into a
// generated unit and hands it to an output sink.
package core

import (
	"context"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"eavcore/internal/accessors"
	"eavcore/internal/accessors/render"
	"eavcore/internal/logger"
	"eavcore/internal/output"
	"eavcore/pkg/domain"
)

var contentTypes = map[string]string{
	"go":   "text/x-go; charset=utf-8",
	"md":   "text/markdown; charset=utf-8",
	"json": "application/json",
	"yaml": "application/yaml",
}

// UnitResult describes one written unit.
type UnitResult struct {
	Family       string `json:"family"`
	Key          string `json:"key"`
	Declarations int    `json:"declarations"`
	Size         int64  `json:"size"`
	ETag         string `json:"etag,omitempty"`
}

// Report summarises a warm-up run. On failure it lists the units written
// before the failing one.
type Report struct {
	Format   string        `json:"format"`
	Units    []UnitResult  `json:"units"`
	Duration time.Duration `json:"duration"`
}

// Declarations is the total declaration count across units.
func (r Report) Declarations() int {
	n := 0
	for _, u := range r.Units {
		n += u.Declarations
	}
	return n
}

// WarmerOption customises a Warmer.
type WarmerOption func(*Warmer)

// WithPrefix places units under prefix inside the sink.
func WithPrefix(prefix string) WarmerOption {
	return func(w *Warmer) { w.prefix = prefix }
}

// WithLogger replaces the global logger.
func WithLogger(l *zap.SugaredLogger) WarmerOption {
	return func(w *Warmer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *Metrics) WarmerOption {
	return func(w *Warmer) { w.metrics = m }
}

// WithClock overrides time.Now for duration measurement.
func WithClock(now func() time.Time) WarmerOption {
	return func(w *Warmer) {
		if now != nil {
			w.now = now
		}
	}
}

// Warmer generates, renders and writes one unit per family.
type Warmer struct {
	registry  *domain.Registry
	generator *accessors.Generator
	renderer  render.Renderer
	sink      output.Sink
	prefix    string
	log       *zap.SugaredLogger
	metrics   *Metrics
	now       func() time.Time
}

// NewWarmer wires a warmer. A nil generator uses an empty catalog and no
// native methods.
func NewWarmer(reg *domain.Registry, gen *accessors.Generator, r render.Renderer, sink output.Sink, opts ...WarmerOption) (*Warmer, error) {
	if reg == nil {
		return nil, errors.New("warmer requires a registry")
	}
	if r == nil {
		return nil, errors.New("warmer requires a renderer")
	}
	if sink == nil {
		return nil, errors.New("warmer requires an output sink")
	}
	if gen == nil {
		gen = accessors.NewGenerator(nil, nil)
	}
	w := &Warmer{
		registry:  reg,
		generator: gen,
		renderer:  r,
		sink:      sink,
		log:       logger.Logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.Named("warmup")
	return w, nil
}

// Key is the sink key for family's unit.
func (w *Warmer) Key(family string) string {
	return path.Join(w.prefix, family+"."+w.renderer.Extension())
}

// Run warms every family in registry order and stops at the first failure.
// Sink failures surface as *output.WriteError.
func (w *Warmer) Run(ctx context.Context) (Report, error) {
	start := w.now()
	report := Report{Format: w.renderer.Format(), Units: []UnitResult{}}
	defer func() {
		report.Duration = w.now().Sub(start)
		if w.metrics != nil {
			w.metrics.Duration.Observe(report.Duration.Seconds())
		}
	}()
	for _, family := range w.registry.Families() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := w.warm(ctx, family)
		if err != nil {
			return report, err
		}
		report.Units = append(report.Units, res)
	}
	w.log.Infow("warm-up complete",
		logger.FieldUnits, len(report.Units),
		logger.FieldFormat, report.Format,
		logger.FieldDurationMS, w.now().Sub(start).Milliseconds())
	return report, nil
}

func (w *Warmer) warm(ctx context.Context, family *domain.Family) (UnitResult, error) {
	unit := w.generator.Unit(family)
	content, err := w.renderer.Render(unit)
	if err != nil {
		return UnitResult{}, errors.Wrapf(err, "render %s", family.Code())
	}
	key := w.Key(family.Code())
	info, err := w.sink.Write(ctx, key, content, output.WriteOptions{ContentType: contentTypes[w.renderer.Extension()]})
	if err != nil {
		if w.metrics != nil {
			w.metrics.WriteFailures.Inc()
		}
		w.log.Errorw("unit write failed", logger.FieldFamily, family.Code(), logger.FieldKey, key, "error", err)
		var we *output.WriteError
		if !errors.As(err, &we) {
			err = &output.WriteError{Driver: w.sink.Driver(), Key: key, Err: err}
		}
		return UnitResult{}, err
	}
	if w.metrics != nil {
		w.metrics.Units.WithLabelValues(w.renderer.Format()).Inc()
		for kind, n := range unit.Count() {
			w.metrics.Declarations.WithLabelValues(string(kind)).Add(float64(n))
		}
	}
	w.log.Infow("unit written",
		logger.FieldFamily, family.Code(),
		logger.FieldKey, key,
		logger.FieldDriver, string(w.sink.Driver()),
		"declarations", len(unit.Declarations))
	return UnitResult{
		Family:       family.Code(),
		Key:          key,
		Declarations: len(unit.Declarations),
		Size:         info.Size,
		ETag:         info.ETag,
	}, nil
}
