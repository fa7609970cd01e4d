package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StudioConfig is the tenant catalogue loaded from config/studio.yaml.
type StudioConfig struct {
	Studios   []Studio   `yaml:"studios"`
	Pricing   Pricing    `yaml:"pricing"`
	Aftercare []CareStep `yaml:"aftercare"`
	Tips      []string   `yaml:"tips"`
}

// Studio describes one tenant.
type Studio struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Admins          []Admin `yaml:"admins"`
	ConsentTemplate string  `yaml:"consent_template"`
}

// Admin is a staff login that exists outside the clients table.
type Admin struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

// Pricing drives the budget estimator.
type Pricing struct {
	PerCM          float64            `yaml:"per_cm"`
	Multipliers    map[string]float64 `yaml:"multipliers"`
	ColorSurcharge float64            `yaml:"color_surcharge"`
	MinSizeCM      int                `yaml:"min_size_cm"`
	MaxSizeCM      int                `yaml:"max_size_cm"`
	RangeFactor    float64            `yaml:"range_factor"`
}

// CareStep is one phase of the aftercare guide.
type CareStep struct {
	Day         string `yaml:"day" json:"day"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// LoadStudioConfig parses the catalogue at path and fills unset sections
// from the defaults.
func LoadStudioConfig(path string) (*StudioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read studio config: %w", err)
	}

	var cfg StudioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse studio config: %w", err)
	}

	seen := make(map[string]bool)
	for i := range cfg.Studios {
		s := &cfg.Studios[i]
		s.ID = strings.ToLower(strings.TrimSpace(s.ID))
		if s.ID == "" {
			return nil, fmt.Errorf("studio %d: id is required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("studio %s: duplicate id", s.ID)
		}
		seen[s.ID] = true
		for j := range s.Admins {
			s.Admins[j].Username = strings.ToLower(strings.TrimSpace(s.Admins[j].Username))
			if s.Admins[j].Username == "" {
				return nil, fmt.Errorf("studio %s: admin %d has no username", s.ID, j)
			}
		}
	}

	def := DefaultStudioConfig()
	if len(cfg.Studios) == 0 {
		cfg.Studios = def.Studios
	}
	if cfg.Pricing.PerCM == 0 {
		cfg.Pricing = def.Pricing
	}
	if len(cfg.Aftercare) == 0 {
		cfg.Aftercare = def.Aftercare
	}
	if len(cfg.Tips) == 0 {
		cfg.Tips = def.Tips
	}
	return &cfg, nil
}

// LoadStudioConfigOrDefault returns the defaults when path cannot be read.
func LoadStudioConfigOrDefault(path string) *StudioConfig {
	cfg, err := LoadStudioConfig(path)
	if err != nil {
		return DefaultStudioConfig()
	}
	return cfg
}

// DefaultStudioConfig is the single-studio setup the app ships with.
func DefaultStudioConfig() *StudioConfig {
	return &StudioConfig{
		Studios: []Studio{
			{
				ID:   "bribiesca",
				Name: "Bribiesca Studio",
				Admins: []Admin{
					{Username: "johana_admin", Password: "123_admin"},
					{Username: "harold", Password: "123_admin"},
				},
			},
		},
		Pricing: Pricing{
			PerCM: 10,
			Multipliers: map[string]float64{
				"Lineal":    1,
				"Sombreado": 1.8,
				"Realista":  2.5,
			},
			ColorSurcharge: 50,
			MinSizeCM:      3,
			MaxSizeCM:      40,
			RangeFactor:    1.2,
		},
		Aftercare: []CareStep{
			{Day: "Día 1-3", Title: "Limpieza Crítica", Description: "Lava 3 veces al día con jabón neutro. No talles."},
			{Day: "Día 4-10", Title: "Hidratación", Description: "Aplica una capa delgada de crema cicatrizante cada 4 horas."},
			{Day: "Día 11-30", Title: "Protección Solar", Description: "Evita el sol directo y piscinas por completo."},
		},
		Tips: []string{
			"Duerme bien la noche anterior a tu cita; la piel resiste mejor.",
			"Come algo antes de tatuarte para evitar mareos.",
			"Evita el alcohol 24 horas antes de la sesión.",
			"Hidrata tu piel durante la semana previa a tu cita.",
			"Usa ropa cómoda que deje libre la zona a tatuar.",
			"No rasques la costra; deja que se caiga sola.",
			"Usa protector solar sobre tu tatuaje ya sanado para que no se desvanezca.",
		},
	}
}

// Studio looks up a tenant by id.
func (c *StudioConfig) Studio(id string) (Studio, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, s := range c.Studios {
		if s.ID == id {
			return s, true
		}
	}
	return Studio{}, false
}

// StudioIDs lists configured tenant ids in file order.
func (c *StudioConfig) StudioIDs() []string {
	ids := make([]string, 0, len(c.Studios))
	for _, s := range c.Studios {
		ids = append(ids, s.ID)
	}
	return ids
}
