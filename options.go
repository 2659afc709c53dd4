// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sparse

import "go.uber.org/zap"

// Option configures a SparseArray, Set, Map or MultiMap while it is being
// created.
type Option interface {
	apply(c *config)
}

// config is the state shared by every container layer. A Set passes its
// config down to the SparseArray that backs it so that both log to the same
// place and use the same capacity policy.
type config struct {
	policy          CapacityPolicy
	logger          *zap.Logger
	initialCapacity int
}

func makeConfig(options []Option) config {
	c := config{
		policy: DefaultCapacityPolicy{},
		logger: zap.NewNop(),
	}
	for _, op := range options {
		op.apply(&c)
	}
	return c
}

// resolve fills in defaults for a zero config, which is what a zero value
// container carries.
func (c *config) resolve() {
	if c.policy == nil {
		c.policy = DefaultCapacityPolicy{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
}

type capacityPolicyOption struct {
	policy CapacityPolicy
}

func (op capacityPolicyOption) apply(c *config) {
	c.policy = op.policy
}

// WithCapacityPolicy is an option to specify the CapacityPolicy used to size
// the backing storage. The default is DefaultCapacityPolicy.
func WithCapacityPolicy(policy CapacityPolicy) Option {
	return capacityPolicyOption{policy}
}

type loggerOption struct {
	logger *zap.Logger
}

func (op loggerOption) apply(c *config) {
	if op.logger != nil {
		c.logger = op.logger
	}
}

// WithLogger is an option to specify the logger structural changes (rehash,
// compaction, shrink) are reported to at debug level. The default discards
// everything.
func WithLogger(logger *zap.Logger) Option {
	return loggerOption{logger}
}

type initialCapacityOption int

func (op initialCapacityOption) apply(c *config) {
	c.initialCapacity = int(op)
}

// WithInitialCapacity is an option to reserve room for n elements when the
// container is created.
func WithInitialCapacity(n int) Option {
	return initialCapacityOption(n)
}
