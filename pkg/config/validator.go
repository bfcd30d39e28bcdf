package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateConfig runs struct-tag validation plus the cross-field checks a
// tag alone can't express, aggregating every failure into one error the
// way the teacher's pkg/config/validator.go reports config problems.
func validateConfig(cfg *Config) error {
	agg := &AggregateError{}

	if err := validate.Struct(cfg.WorkerPool); err != nil {
		appendValidatorErrors(agg, "worker_pool", err)
	}
	if err := validate.Struct(cfg.Registry); err != nil {
		appendValidatorErrors(agg, "registry", err)
	}
	if err := validate.Struct(cfg.Agentic); err != nil {
		appendValidatorErrors(agg, "agentic", err)
	}

	if cfg.WorkerPool.KillGracePeriod <= 0 {
		agg.add("worker_pool.kill_grace_period", "must be greater than zero")
	}
	if cfg.WorkerPool.QueueCapacity < cfg.WorkerPool.MaxConcurrent {
		agg.add("worker_pool.queue_capacity", "must be >= max_concurrent")
	}

	if len(cfg.Pricing) == 0 {
		agg.add("pricing", "at least one tier must be configured")
	}
	for tier, price := range cfg.Pricing {
		if price.InputPerMillion.IsNegative() {
			agg.add(fmt.Sprintf("pricing[%s].input_per_million", tier), "must not be negative")
		}
		if price.OutputPerMillion.IsNegative() {
			agg.add(fmt.Sprintf("pricing[%s].output_per_million", tier), "must not be negative")
		}
		if price.ModelID == "" {
			agg.add(fmt.Sprintf("pricing[%s].model_id", tier), "required for DirectPath to address this tier")
		}
	}

	return agg.asError()
}

func appendValidatorErrors(agg *AggregateError, section string, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			agg.add(section+"."+fe.Field(), fe.Tag())
		}
		return
	}
	agg.add(section, err.Error())
}
