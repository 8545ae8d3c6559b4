package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"feedbackfast/internal/domain"
	"feedbackfast/internal/session"
)

//go:embed seed.yml
var defaultSeed []byte

// Data is the mock data a session starts from.
type Data struct {
	Creator       domain.User             `yaml:"creator" json:"creator"`
	CurrentTester string                  `yaml:"current_tester" json:"current_tester"`
	Testers       []domain.TesterProfile  `yaml:"testers" json:"testers"`
	Campaigns     []domain.TestCampaign   `yaml:"campaigns" json:"campaigns"`
	Assignments   []domain.TestAssignment `yaml:"assignments" json:"assignments"`
}

// Default returns the built-in demo data.
func Default() Data {
	d, err := Parse(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("embedded seed: %v", err))
	}
	return d
}

func FromFile(path string) (Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Data{}, err
	}
	d, err := Parse(b)
	if err != nil {
		return Data{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes and validates seed data. Feedback sentiment is always
// derived from the rating, whatever the document says.
func Parse(b []byte) (Data, error) {
	var d Data
	if err := yaml.Unmarshal(b, &d); err != nil {
		return Data{}, fmt.Errorf("parse seed: %w", err)
	}
	for i := range d.Campaigns {
		if d.Campaigns[i].Feedbacks == nil {
			d.Campaigns[i].Feedbacks = []domain.Feedback{}
		}
		for j := range d.Campaigns[i].Feedbacks {
			f := &d.Campaigns[i].Feedbacks[j]
			f.Sentiment = domain.SentimentFor(f.Rating)
		}
	}
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

func (d Data) Validate() error {
	if d.Creator.ID == "" {
		return fmt.Errorf("seed: creator id is required")
	}
	testers := map[string]bool{}
	for _, t := range d.Testers {
		if t.ID == "" {
			return fmt.Errorf("seed: tester id is required")
		}
		if testers[t.ID] {
			return fmt.Errorf("seed: duplicate tester %s", t.ID)
		}
		testers[t.ID] = true
	}
	if !testers[d.CurrentTester] {
		return fmt.Errorf("seed: current tester %q not in testers", d.CurrentTester)
	}
	campaigns := map[string]bool{}
	for _, c := range d.Campaigns {
		if c.ID == "" || campaigns[c.ID] {
			return fmt.Errorf("seed: missing or duplicate campaign id %q", c.ID)
		}
		campaigns[c.ID] = true
		for _, f := range c.Feedbacks {
			if f.Rating < domain.MinRating || f.Rating > domain.MaxRating {
				return fmt.Errorf("seed: feedback %s rating %d out of range", f.ID, f.Rating)
			}
			if !f.Type.Valid() {
				return fmt.Errorf("seed: feedback %s has unknown type %q", f.ID, f.Type)
			}
		}
	}
	assignments := map[string]bool{}
	for _, a := range d.Assignments {
		if a.ID == "" || assignments[a.ID] {
			return fmt.Errorf("seed: missing or duplicate assignment id %q", a.ID)
		}
		assignments[a.ID] = true
		if !campaigns[a.CampaignID] {
			return fmt.Errorf("seed: assignment %s references unknown campaign %s", a.ID, a.CampaignID)
		}
		if !testers[a.TesterID] {
			return fmt.Errorf("seed: assignment %s references unknown tester %s", a.ID, a.TesterID)
		}
		if a.Status.Rank() == 0 {
			return fmt.Errorf("seed: assignment %s has unknown status %q", a.ID, a.Status)
		}
	}
	return nil
}

// State builds the initial session: creator role, dashboard tab, behind the
// sign-up screen.
func (d Data) State() session.State {
	s := session.State{
		Role:     domain.RoleCreator,
		Creator:  d.Creator,
		Nav:      session.Nav{ActiveTab: session.TabDashboard},
		ShowAuth: true,
	}
	s.Campaigns = append([]domain.TestCampaign{}, d.Campaigns...)
	s.Assignments = append([]domain.TestAssignment{}, d.Assignments...)
	s.Testers = append([]domain.TesterProfile{}, d.Testers...)
	for _, t := range d.Testers {
		if t.ID == d.CurrentTester {
			s.Tester = t
		}
	}
	return s.Clone()
}
