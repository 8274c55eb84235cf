package plan

import (
	"context"
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlSource loads the plan catalog from a YAML file. The file is re-read
// on every Load so a catalog refresh only needs a service restart-free reload.
type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source backed by a YAML file of the form:
//
//	plans:
//	  - id: starter
//	    name: Starter
//	    category: personal
//	    price: {amount: 900, currency: USD}
//	    interval: monthly
//	    public: true
//	    limits:
//	      transcriptions: 200
//	      filesDaily: 10
//	      filesMonthly: 100
//	      concurrentJobs: 1
//	      voiceSynthesis: 0
//	      exports: 20
//	      audioDurationMinutes: 600
//
// Limits use the integer sentinel form: -1 unlimited, 0 disabled.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

type yamlCatalog struct {
	Plans []Plan `yaml:"plans"`
}

// Load parses the YAML file into a plan map keyed by plan ID.
func (s *yamlSource) Load(ctx context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var doc yamlCatalog
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		plans[p.ID] = p
	}
	return plans, nil
}
