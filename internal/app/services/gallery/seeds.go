package gallery

import (
	"fmt"
	"time"

	domain "github.com/R3E-Network/studio_layer/internal/app/domain/gallery"
)

type seed struct {
	photo       int
	alt         string
	description string
	style       string
	date        string
}

var seeds = []seed{
	{101, "Lobo Geométrico", "Un diseño intrincado de un lobo compuesto por formas geométricas y líneas limpias, simbolizando la inteligencia y la libertad.", domain.StyleGeometrico, "2024-05-15"},
	{102, "Retrato de Tigre", "Un retrato fotorrealista de un tigre, capturando la intensidad de su mirada y la textura de su pelaje. Un símbolo de poder y coraje.", domain.StyleRealismo, "2024-04-20"},
	{103, "Rosa Tradicional", "Una rosa clásica en estilo tradicional americano, con colores sólidos, líneas gruesas y un diseño atemporal que representa el amor y la belleza.", domain.StyleTradicional, "2023-11-30"},
	{104, "Manga de Mandalas", "Una composición de mandalas y patrones sagrados que fluyen a lo largo del brazo, representando el equilibrio y la espiritualidad.", domain.StyleBlackwork, "2024-06-01"},
	{106, "Brújula y Mapa", "Una brújula detallada sobre un fondo de mapa antiguo, perfecta para los amantes de los viajes y la aventura.", domain.StyleRealismo, "2024-02-10"},
	{108, "Daga y Corazón", "Un diseño icónico del estilo tradicional: una daga atravesando un corazón, simbolizando la traición pero también la valentía.", domain.StyleTradicional, "2024-03-25"},
	{111, "Patrones Tribales", "Diseños tribales audaces que se adaptan a la forma del músculo, utilizando tinta negra sólida para crear un impacto visual fuerte.", domain.StyleBlackwork, "2023-09-05"},
	{117, "Constelación de Orión", "Una representación minimalista de la constelación de Orión, conectada con líneas finas y puntos precisos. Ideal para un primer tatuaje.", domain.StyleGeometrico, "2024-05-28"},
}

// Seeds returns the portfolio pieces every studio starts with.
func Seeds(studioID string) []domain.Item {
	out := make([]domain.Item, 0, len(seeds))
	for i, s := range seeds {
		created, _ := time.Parse(dateLayout, s.date)
		out = append(out, domain.Item{
			ID:          fmt.Sprintf("%s-seed-%d", studioID, i+1),
			StudioID:    studioID,
			Src:         fmt.Sprintf("https://picsum.photos/id/%d/500/500", s.photo),
			Alt:         s.alt,
			Description: s.description,
			Style:       s.style,
			Date:        s.date,
			Type:        typeImage,
			CreatedAt:   created,
		})
	}
	return out
}
