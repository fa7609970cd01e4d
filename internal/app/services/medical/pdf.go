package medical

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/R3E-Network/studio_layer/internal/app/domain/medical"
)

// PDFFilename is the download name for a form export.
func PDFFilename(h medical.History) string {
	return "Historial_" + strings.Replace(h.ClientName, " ", "_", 1) + ".pdf"
}

// WritePDF renders the clinical record sheet for h to w.
func WritePDF(w io.Writer, studioName string, h medical.History) error {
	if studioName == "" {
		studioName = "Bribiesca Studio"
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Historial "+h.ClientName, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	centered := func(y float64, s string) {
		s = tr(s)
		pdf.Text(105-pdf.GetStringWidth(s)/2, y, s)
	}
	line := func(y float64, s string) {
		pdf.Text(20, y, tr(s))
	}
	heading := func(y float64, s string) {
		pdf.SetFont("Helvetica", "B", 10)
		line(y, s)
		pdf.SetFont("Helvetica", "", 10)
	}

	pdf.SetFont("Helvetica", "", 22)
	centered(20, strings.ToUpper(studioName)+" - FICHA CLÍNICA")
	pdf.SetFont("Helvetica", "", 10)
	centered(28, fmt.Sprintf("Expediente N: %s | Fecha: %s", h.ID, h.CreatedAt.Format("2/1/2006")))
	pdf.SetLineWidth(0.5)
	pdf.Line(20, 35, 190, 35)

	age := ""
	if h.Age > 0 {
		age = strconv.Itoa(h.Age)
	}
	heading(45, "DATOS PERSONALES")
	line(52, "Nombre: "+h.ClientName)
	line(59, fmt.Sprintf("F. Nacimiento: %s | Edad: %s | Sexo: %s", h.BirthDate, age, h.Sex))
	line(66, "Dirección: "+h.Address)
	line(73, fmt.Sprintf("Teléfono: %s | Ocupación: %s", h.Phone, h.Occupation))
	line(80, fmt.Sprintf("Residencia: %s | Escolaridad: %s", h.Residence, h.Schooling))
	line(87, "Email: "+h.Email)

	conditions := strings.Join(h.Conditions, ", ")
	if conditions == "" {
		conditions = "Ninguna"
	}
	allergies := h.AllergiesDetail
	if allergies == "" {
		allergies = "No declaradas"
	}
	heading(100, "INFORMACIÓN DE SALUD")
	line(107, "Condiciones registradas: "+conditions)
	line(114, "Alergias: "+allergies)

	motive := h.AppointmentMotive
	if motive == "" {
		motive = "Sin descripción"
	}
	heading(127, "MOTIVO DE LA CITA")
	pdf.SetLineWidth(0.1)
	pdf.Rect(20, 132, 170, 40, "D")
	pdf.SetXY(25, 134)
	pdf.MultiCell(160, 5, tr(motive), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
