package entity

type Variant string

const (
	VariantWarning     Variant = "warning"
	VariantDestructive Variant = "destructive"
	VariantSuccess     Variant = "success"
)

type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}
