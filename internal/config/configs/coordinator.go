package configs

import "time"

// Coordinator bounds the campaign-creation fan-out. Deadline is the
// single global deadline for one coordination round; workers that miss
// it are not cancelled, their late results are discarded.
type Coordinator struct {
	Deadline time.Duration `env:"DEADLINE" envDefault:"30s"`
}
