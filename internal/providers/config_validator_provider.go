package providers

import (
	"chatstat/internal/models"
	"chatstat/internal/structures"
	"fmt"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (c *CnfValidator) Validate() error {
	v := validate.Struct(c.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors)
	}
	if c.conf.Storage.MaxOpenShards < 0 {
		return fmt.Errorf("invalid config: storage.maxOpenShards must not be negative")
	}
	if _, err := models.ParseReference(c.conf.Storage.Epoch); err != nil {
		return fmt.Errorf("invalid config: storage.epoch: %w", err)
	}
	return nil
}
