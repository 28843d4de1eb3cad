package routing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AltairaLabs/agent-router/internal/agents"
)

// Intent is the classified purpose of a message. Task types mirror intents.
type Intent string

// Built-in intents in classification order
const (
	IntentCampaign        Intent = "campaign"
	IntentPlanning        Intent = "planning"
	IntentVideoGeneration Intent = "video_generation"
	IntentImageGeneration Intent = "image_generation"
	IntentAnalytics       Intent = "analysis"
	IntentSales           Intent = "sales"
	IntentProductInquiry  Intent = "product_inquiry"
	IntentServiceInquiry  Intent = "service_inquiry"
	IntentCustomerSupport Intent = "customer_support"
	IntentSinglePost      Intent = "single_post"
)

// IsMedia reports whether the intent asks for generated media
func (i Intent) IsMedia() bool {
	return i == IntentImageGeneration || i == IntentVideoGeneration
}

// Rule is a named group of lower-case substring patterns
type Rule struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// Tables holds every keyword table and agent map used to build a Decision.
// Order of Intents and Channels is significant.
type Tables struct {
	Intents        []Rule `yaml:"intents"`
	FallbackIntent Intent `yaml:"fallback_intent"`
	Channels       []Rule `yaml:"channels"`

	Urgency  []string `yaml:"urgency"`
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`

	Static              map[Intent]agents.Name `yaml:"static"`
	Alternate           map[Intent]agents.Name `yaml:"alternate"`
	CommercialSiteTypes []string               `yaml:"commercial_site_types"`
	Commercial          map[Intent]agents.Name `yaml:"commercial"`
}

// DefaultTables returns the built-in routing tables
func DefaultTables() *Tables {
	return &Tables{
		Intents: []Rule{
			{Name: string(IntentCampaign), Patterns: []string{
				"campaña", "campana", "campaign", "lanzamiento", "launch", "promoción", "promocion", "promotion",
			}},
			{Name: string(IntentPlanning), Patterns: []string{
				"programar", "planificar", "planear", "estrategia", "strategy", "calendario", "calendar",
				"schedule", "plan de contenido", "content plan",
			}},
			{Name: string(IntentVideoGeneration), Patterns: []string{
				"video", "vídeo", "reel", "clip", "animación", "animation",
			}},
			{Name: string(IntentImageGeneration), Patterns: []string{
				"imagen", "image", "foto", "photo", "diseño", "design", "banner", "logo", "ilustración",
			}},
			{Name: string(IntentAnalytics), Patterns: []string{
				"análisis", "analisis", "analiza", "analysis", "analyze", "métricas", "metricas", "metrics",
				"estadísticas", "statistics", "rendimiento", "performance", "reporte", "report",
			}},
			{Name: string(IntentSales), Patterns: []string{
				"comprar", "compra", "precio", "buy", "purchase", "price", "venta", "oferta", "descuento",
				"discount", "cotización", "quote",
			}},
			{Name: string(IntentProductInquiry), Patterns: []string{
				"producto", "product", "catálogo", "catalogo", "catalog", "inventario", "inventory", "stock",
			}},
			{Name: string(IntentServiceInquiry), Patterns: []string{
				"servicio", "reserva", "reservar", "turno", "appointment", "booking", "agendar",
			}},
			{Name: string(IntentCustomerSupport), Patterns: []string{
				"soporte", "support", "ayuda", "help", "problema", "problem", "queja", "complaint",
				"no funciona", "not working", "reclamo",
			}},
		},
		FallbackIntent: IntentSinglePost,
		Channels: []Rule{
			{Name: "instagram", Patterns: []string{"instagram"}},
			{Name: "facebook", Patterns: []string{"facebook"}},
			{Name: "tiktok", Patterns: []string{"tiktok", "tik tok"}},
			{Name: "twitter", Patterns: []string{"twitter", "tweet"}},
			{Name: "linkedin", Patterns: []string{"linkedin"}},
			{Name: "youtube", Patterns: []string{"youtube"}},
			{Name: "whatsapp", Patterns: []string{"whatsapp"}},
			{Name: "email", Patterns: []string{"email", "e-mail", "correo", "newsletter"}},
		},
		Urgency: []string{
			"urgente", "urgent", "asap", "inmediato", "inmediatamente", "immediately", "ahora mismo",
			"right now", "hoy mismo", "emergencia", "emergency",
		},
		Positive: []string{
			"gracias", "thanks", "thank you", "excelente", "excellent", "genial", "great", "perfecto",
			"perfect", "me encanta", "love", "feliz", "happy",
		},
		Negative: []string{
			"problema", "problem", "malo", "bad", "terrible", "horrible", "molesto", "angry", "queja",
			"complaint", "decepcionado", "disappointed", "no funciona", "not working",
		},
		Static: map[Intent]agents.Name{
			IntentCampaign:        agents.Scheduler,
			IntentPlanning:        agents.Strategist,
			IntentVideoGeneration: agents.VideoProducer,
			IntentImageGeneration: agents.ImageDesigner,
			IntentAnalytics:       agents.DataAnalyst,
			IntentCustomerSupport: agents.CustomerSupport,
			IntentSinglePost:      agents.Copywriter,
		},
		Alternate: map[Intent]agents.Name{
			IntentCampaign:        agents.TrendResearcher,
			IntentPlanning:        agents.Scheduler,
			IntentVideoGeneration: agents.ContentCreator,
			IntentImageGeneration: agents.ContentCreator,
			IntentAnalytics:       agents.TrendResearcher,
			IntentCustomerSupport: agents.QuickResponder,
			IntentSinglePost:      agents.ContentCreator,
			IntentSales:           agents.CustomerSupport,
		},
		CommercialSiteTypes: []string{"ecommerce", "retail", "store", "services", "restaurant"},
		Commercial: map[Intent]agents.Name{
			IntentSales:          agents.SalesAgent,
			IntentProductInquiry: agents.ProductCatalog,
			IntentServiceInquiry: agents.ServiceBooking,
		},
	}
}

// LoadTables reads a YAML override file. Sections present in the file replace
// the built-in ones; omitted sections keep their defaults.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing tables: %w", err)
	}

	t := DefaultTables()
	override := &Tables{}
	if err := yaml.Unmarshal(data, override); err != nil {
		return nil, fmt.Errorf("failed to parse routing tables %s: %w", path, err)
	}
	t.merge(override)

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid routing tables %s: %w", path, err)
	}
	return t, nil
}

func (t *Tables) merge(o *Tables) {
	if len(o.Intents) > 0 {
		t.Intents = o.Intents
	}
	if o.FallbackIntent != "" {
		t.FallbackIntent = o.FallbackIntent
	}
	if len(o.Channels) > 0 {
		t.Channels = o.Channels
	}
	if len(o.Urgency) > 0 {
		t.Urgency = o.Urgency
	}
	if len(o.Positive) > 0 {
		t.Positive = o.Positive
	}
	if len(o.Negative) > 0 {
		t.Negative = o.Negative
	}
	if len(o.Static) > 0 {
		t.Static = o.Static
	}
	if len(o.Alternate) > 0 {
		t.Alternate = o.Alternate
	}
	if len(o.CommercialSiteTypes) > 0 {
		t.CommercialSiteTypes = o.CommercialSiteTypes
	}
	if len(o.Commercial) > 0 {
		t.Commercial = o.Commercial
	}
}

// Validate checks that every referenced agent belongs to the closed set and
// normalizes patterns to lower case
func (t *Tables) Validate() error {
	if t.FallbackIntent == "" {
		return fmt.Errorf("fallback_intent is required")
	}

	seen := make(map[string]bool)
	for i := range t.Intents {
		r := &t.Intents[i]
		if r.Name == "" {
			return fmt.Errorf("intent %d has no name", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate intent %q", r.Name)
		}
		seen[r.Name] = true
		lowerAll(r.Patterns)
	}
	for i := range t.Channels {
		if t.Channels[i].Name == "" {
			return fmt.Errorf("channel %d has no name", i)
		}
		lowerAll(t.Channels[i].Patterns)
	}
	lowerAll(t.Urgency)
	lowerAll(t.Positive)
	lowerAll(t.Negative)
	lowerAll(t.CommercialSiteTypes)

	for label, m := range map[string]map[Intent]agents.Name{
		"static":     t.Static,
		"alternate":  t.Alternate,
		"commercial": t.Commercial,
	} {
		for intent, name := range m {
			if _, err := agents.Parse(string(name)); err != nil {
				return fmt.Errorf("%s map: intent %q: %w", label, intent, err)
			}
		}
	}
	return nil
}

func lowerAll(s []string) {
	for i := range s {
		s[i] = strings.ToLower(strings.TrimSpace(s[i]))
	}
}

// isCommercialSite reports whether siteType names a commercial tenant
func (t *Tables) isCommercialSite(siteType string) bool {
	siteType = strings.ToLower(strings.TrimSpace(siteType))
	if siteType == "" {
		return false
	}
	for _, s := range t.CommercialSiteTypes {
		if s == siteType {
			return true
		}
	}
	return false
}
