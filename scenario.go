// -*- tab-width:2 -*-

package rpcq

import (
	"os"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// DefaultNode is the node address used when a scenario names none.
const DefaultNode = "5de663"

// ScenarioCall is one queued call in a scenario file.
type ScenarioCall struct {
	Name    string `yaml:"name"`
	Method  string `yaml:"method"`
	Args    []any  `yaml:"args,omitempty"`
	Expect  string `yaml:"expect,omitempty"`
	Retries *int   `yaml:"retries,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
	Delay   string `yaml:"delay,omitempty"`
}

// Latency distribution names for ScenarioLatency.Dist.
const (
	DistConstant  = "constant"
	DistUniform   = "uniform"
	DistNormal    = "normal"
	DistLogNormal = "lognormal"
	DistPareto    = "pareto"
)

// ScenarioLatency picks the one way latency distribution. Only the
// fields of the chosen Dist are read. Times are in milliseconds; for
// lognormal, Mu and Sigma are of the log of the latency.
type ScenarioLatency struct {
	Dist     string  `yaml:"dist"`
	Ms       float64 `yaml:"ms,omitempty"`
	MinMs    float64 `yaml:"min_ms,omitempty"`
	MaxMs    float64 `yaml:"max_ms,omitempty"`
	MeanMs   float64 `yaml:"mean_ms,omitempty"`
	StdDevMs float64 `yaml:"stddev_ms,omitempty"`
	Mu       float64 `yaml:"mu,omitempty"`
	Sigma    float64 `yaml:"sigma,omitempty"`
	ScaleMs  float64 `yaml:"scale_ms,omitempty"`
	Alpha    float64 `yaml:"alpha,omitempty"`
}

// ScenarioLink describes the simulated link. Latency, when set, wins
// over the uniform min/max pair.
type ScenarioLink struct {
	LatencyMinMs float64          `yaml:"latency_min_ms,omitempty"`
	LatencyMaxMs float64          `yaml:"latency_max_ms,omitempty"`
	Latency      *ScenarioLatency `yaml:"latency,omitempty"`
	Loss         float64          `yaml:"loss,omitempty"`
	Seed         int64            `yaml:"seed"`
}

// Scenario is a node, a link, and the ordered calls to make.
type Scenario struct {
	Node  string         `yaml:"node"`
	Link  ScenarioLink   `yaml:"link"`
	Calls []ScenarioCall `yaml:"calls"`
}

func intPtr(i int) *int {
	return &i
}

// DefaultScenario is the demo flow: a simple callback, a counter
// reset, the wrong-tag-first call, two calls through outages, and one
// call that is meant to be dropped.
//
// retries_and_timeouts_two is sent at 0s, 2s and 4s into a 4s
// outage. Its last attempt gets through only if it reaches the node
// after the outage command's own latency has passed, so whether it
// completes or is dropped depends on the link seed. Seed 1 drops it.
func DefaultScenario() *Scenario {
	return &Scenario{
		Node: DefaultNode,
		Link: ScenarioLink{
			LatencyMinMs: defaultLatencyMinMs,
			LatencyMaxMs: defaultLatencyMaxMs,
			Seed:         1,
		},
		Calls: []ScenarioCall{
			{
				Name:   "simple_callback",
				Method: callbackMethod,
				Args:   []any{TagSimple, "simple_call"},
				Expect: TagSimple,
			},
			{
				Name:    "reset_explicit_counter",
				Method:  MethodReset,
				Retries: intPtr(0),
				Timeout: "0s",
			},
			{
				Name:   "expect_special_callback",
				Method: MethodExplicit,
				Expect: TagExplicit,
			},
			{
				Name:   "retries_and_timeouts_one",
				Method: callbackMethod,
				Args:   []any{TagDelayOne, "delay_call_one"},
				Expect: TagDelayOne,
				Delay:  "5s",
			},
			{
				Name:    "retries_and_timeouts_two",
				Method:  callbackMethod,
				Args:    []any{TagDelayTwo, "delay_call_two"},
				Expect:  TagDelayTwo,
				Retries: intPtr(2), //nolint:mnd
				Timeout: "2s",
				Delay:   "4s",
			},
			{
				Name:    "dropped_call",
				Method:  callbackMethod,
				Args:    []any{TagDropped, "dropped_call"},
				Expect:  TagDropped,
				Retries: intPtr(0),
				Timeout: "0s",
			},
		},
	}
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading scenario %s", path)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, errors.Annotatef(err, "scenario %s", path)
	}

	return s, nil
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Trace(err)
	}

	if s.Node == "" {
		s.Node = DefaultNode
	}

	return s, nil
}

// Marshal encodes the scenario as YAML.
func (s *Scenario) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)

	return data, errors.Trace(err)
}

// LinkConf turns the link section into a LinkConf.
func (s *Scenario) LinkConf() (*LinkConf, error) {
	if s.Link.Loss < 0 || s.Link.Loss > 1 {
		return nil, errors.NotValidf("link loss %v", s.Link.Loss)
	}

	conf := &LinkConf{
		Name:     "link-" + s.Node,
		LossRate: s.Link.Loss,
		Seed:     s.Link.Seed,
	}

	switch {
	case s.Link.Latency != nil:
		f, err := s.Link.Latency.ModelCdf()
		if err != nil {
			return nil, errors.Annotatef(err, "link %s", conf.Name)
		}

		conf.Latency = f
	case s.Link.LatencyMaxMs > 0:
		conf.Latency = UniformCDF(s.Link.LatencyMinMs, s.Link.LatencyMaxMs)
	}

	return conf, nil
}

// ModelCdf maps the section onto one of the latency distributions.
func (l *ScenarioLatency) ModelCdf() (ModelCdf, error) {
	switch l.Dist {
	case DistConstant:
		if l.Ms < 0 {
			return nil, errors.NotValidf("constant latency %vms", l.Ms)
		}

		return ConstantCDF(l.Ms), nil
	case DistUniform, "":
		if l.MinMs < 0 || l.MaxMs < l.MinMs {
			return nil, errors.NotValidf("uniform latency [%v, %v]ms", l.MinMs, l.MaxMs)
		}

		return UniformCDF(l.MinMs, l.MaxMs), nil
	case DistNormal:
		if l.StdDevMs <= 0 {
			return nil, errors.NotValidf("normal latency stddev %vms", l.StdDevMs)
		}

		return NormalCDF(l.MeanMs, l.StdDevMs), nil
	case DistLogNormal:
		if l.Sigma <= 0 {
			return nil, errors.NotValidf("lognormal latency sigma %v", l.Sigma)
		}

		return LogNormalCDF(l.Mu, l.Sigma), nil
	case DistPareto:
		if l.ScaleMs <= 0 || l.Alpha <= 0 {
			return nil, errors.NotValidf("pareto latency scale %vms alpha %v", l.ScaleMs, l.Alpha)
		}

		return ParetoCDF(l.ScaleMs, l.Alpha), nil
	}

	return nil, errors.NotValidf("latency distribution %q", l.Dist)
}

// PreDelayAction tells the scenario's node to turn its radio off for
// the pre-delay.
func (s *Scenario) PreDelayAction(t Transport) func(time.Duration) {
	return func(d time.Duration) {
		ml.Ln("Simulating an outage by turning off the radio for", d)
		t.Issue(s.Node, MethodOutage, d.Seconds())
	}
}

// Descriptors builds the scenario's calls, each invoking over t.
func (s *Scenario) Descriptors(t Transport) ([]*Descriptor, error) {
	out := make([]*Descriptor, 0, len(s.Calls))

	for i := range s.Calls {
		d, err := s.descriptor(&s.Calls[i], t)
		if err != nil {
			return nil, errors.Annotatef(err, "call %d", i)
		}

		out = append(out, d)
	}

	return out, nil
}

// Enqueue queues every call of the scenario on d.
func (s *Scenario) Enqueue(d *Dispatcher, t Transport) error {
	descs, err := s.Descriptors(t)
	if err != nil {
		return errors.Trace(err)
	}

	for _, desc := range descs {
		if err := d.Push(desc); err != nil {
			return errors.Trace(err)
		}
	}

	return nil
}

func (s *Scenario) descriptor(c *ScenarioCall, t Transport) (*Descriptor, error) {
	if c.Method == "" {
		return nil, errors.NotValidf("call %q without method", c.Name)
	}

	var opts []CallOption

	if c.Retries != nil {
		opts = append(opts, WithRetries(*c.Retries))
	}

	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return nil, errors.Annotatef(err, "call %q timeout", c.Name)
		}

		opts = append(opts, WithTimeout(d))
	}

	if c.Delay != "" {
		d, err := time.ParseDuration(c.Delay)
		if err != nil {
			return nil, errors.Annotatef(err, "call %q delay", c.Name)
		}

		opts = append(opts, WithPreDelay(d))
	}

	node, method, args := s.Node, c.Method, c.Args
	name := c.Name

	if name == "" {
		name = method
	}

	invoke := func() {
		ml.Ln("Sending RPC for", name)
		t.Issue(node, method, args...)
	}

	desc := NewDescriptor(name, invoke, c.Expect, opts...)
	if err := desc.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	return desc, nil
}
