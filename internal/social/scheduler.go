package social

import (
	"context"
	"fmt"

	"github.com/clickstudio/click/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronParser accepts standard 5-field expressions and descriptors such as
// "@every 1m" or "@hourly".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a schedule the Scheduler accepts.
func ValidateSpec(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("social: invalid scheduler spec %q: %w", spec, err)
	}
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(kv).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error().Err(err).Fields(kv).Msg(msg)
}

// Scheduler publishes due posts on a cron schedule. Overlapping runs are
// skipped.
type Scheduler struct {
	svc  *Service
	spec string
	log  zerolog.Logger
	cron *cron.Cron
}

// NewScheduler returns a Scheduler running svc.RunDue on spec.
func NewScheduler(svc *Service, spec string, log zerolog.Logger) (*Scheduler, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		svc:  svc,
		spec: spec,
		log:  log,
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}, nil
}

// RunOnce runs a single publishing pass.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	ctx = s.log.WithContext(ctx)
	res, err := s.svc.RunDue(ctx)
	metrics.RecordSchedulerRun(err)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler run failed")
		return res, err
	}
	if res.Claimed > 0 || res.Recovered > 0 {
		s.log.Info().
			Int("claimed", res.Claimed).
			Int("recovered", res.Recovered).
			Int("published", res.Published).
			Int("failed", res.Failed).
			Msg("scheduler run complete")
	}
	return res, nil
}

// Start schedules runs until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if ctx.Err() != nil {
			return
		}
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("social: schedule publisher: %w", err)
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("post scheduler started")
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
