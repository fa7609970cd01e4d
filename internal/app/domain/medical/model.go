package medical

import "time"

// History is a medical intake form ("ficha clínica").
type History struct {
	ID                string    `json:"id" db:"id"`
	StudioID          string    `json:"studio_id" db:"studio_id"`
	ClientID          string    `json:"client_id,omitempty" db:"client_id"`
	ClientUsername    string    `json:"client_username,omitempty" db:"client_username"`
	ClientName        string    `json:"client_name" db:"client_name"`
	BirthDate         string    `json:"birth_date,omitempty" db:"birth_date"`
	Age               int       `json:"age,omitempty" db:"age"`
	Sex               string    `json:"sex,omitempty" db:"sex"`
	Address           string    `json:"address,omitempty" db:"address"`
	Phone             string    `json:"phone,omitempty" db:"phone"`
	Occupation        string    `json:"occupation,omitempty" db:"occupation"`
	Residence         string    `json:"residence,omitempty" db:"residence"`
	Schooling         string    `json:"schooling,omitempty" db:"schooling"`
	Email             string    `json:"email,omitempty" db:"email"`
	Conditions        []string  `json:"conditions" db:"-"`
	AllergiesDetail   string    `json:"allergies_detail,omitempty" db:"allergies_detail"`
	AppointmentMotive string    `json:"appointment_motive,omitempty" db:"appointment_motive"`
	SignatureClient   string    `json:"signature_client,omitempty" db:"signature_client"`
	SignatureWitness  string    `json:"signature_witness,omitempty" db:"signature_witness"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Conditions offered on the intake form.
var Conditions = []string{
	"Diabetes",
	"Hipertensión",
	"Epilepsia",
	"COVID-19",
	"Hepatitis A, B o C",
	"Influenza",
	"VIH/SIDA",
}
