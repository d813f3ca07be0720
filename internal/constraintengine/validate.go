// Package constraintengine implements the five responsibilities of the
// polymorphic constraint subsystem: validating each variant's config_json
// payload, persisting the constraint row and projecting derived canonical
// events where the variant calls for one, handling update/delete teardown
// semantics, and expanding constraints into busy-interval contributions for
// the availability engine.
package constraintengine

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

var validate = validator.New()

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ValidateConfig decodes configJSON per kind, runs struct-tag validation,
// and applies the checks validator struct tags cannot express (IANA
// timezone resolvability, HH:MM format). Every failure is returned as
// apperrors.Validation naming the offending field, per spec §4.3.
func ValidateConfig(kind domain.ConstraintKind, configJSON string) error {
	switch kind {
	case domain.ConstraintTrip:
		var cfg domain.TripConfig
		if err := decode(configJSON, &cfg); err != nil {
			return err
		}
		if err := validate.Struct(cfg); err != nil {
			return validationError(err)
		}
		return validateTimezone(cfg.Timezone)

	case domain.ConstraintWorkingHours:
		var cfg domain.WorkingHoursConfig
		if err := decode(configJSON, &cfg); err != nil {
			return err
		}
		if err := validate.Struct(cfg); err != nil {
			return validationError(err)
		}
		if err := validateTimezone(cfg.Timezone); err != nil {
			return err
		}
		if err := validateHHMM("start_time", cfg.StartTime); err != nil {
			return err
		}
		return validateHHMM("end_time", cfg.EndTime)

	case domain.ConstraintBuffer:
		var cfg domain.BufferConfig
		if err := decode(configJSON, &cfg); err != nil {
			return err
		}
		if err := validate.Struct(cfg); err != nil {
			return validationError(err)
		}
		return nil

	case domain.ConstraintNoMeetingsAfter:
		var cfg domain.NoMeetingsAfterConfig
		if err := decode(configJSON, &cfg); err != nil {
			return err
		}
		if err := validate.Struct(cfg); err != nil {
			return validationError(err)
		}
		if err := validateTimezone(cfg.Timezone); err != nil {
			return err
		}
		return validateHHMM("cutoff_time", cfg.CutoffTime)

	case domain.ConstraintOverride:
		var cfg domain.OverrideConfig
		if err := decode(configJSON, &cfg); err != nil {
			return err
		}
		if err := validate.Struct(cfg); err != nil {
			return validationError(err)
		}
		return nil

	case domain.ConstraintMilestone:
		var cfg domain.MilestoneConstraintConfig
		if err := decode(configJSON, &cfg); err != nil {
			return err
		}
		if err := validate.Struct(cfg); err != nil {
			return validationError(err)
		}
		return nil

	default:
		return apperrors.Validation("kind", "unknown constraint kind "+string(kind))
	}
}

func decode(configJSON string, dest interface{}) error {
	if err := json.Unmarshal([]byte(configJSON), dest); err != nil {
		return apperrors.Validation("config_json", "malformed: "+err.Error())
	}
	return nil
}

func validateTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return apperrors.Validation("timezone", "not a recognized IANA timezone: "+tz)
	}
	return nil
}

func validateHHMM(field, value string) error {
	if !hhmmPattern.MatchString(value) {
		return apperrors.Validation(field, "must be HH:MM (24h): "+value)
	}
	return nil
}

// validationError extracts the first failing field from a validator error
// so the apperrors.Validation message names the offending field directly.
func validationError(err error) error {
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.Validation(fe.Field(), "failed "+fe.Tag())
	}
	return apperrors.Validation("config_json", err.Error())
}
