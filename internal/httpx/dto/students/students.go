// Package students contiene los DTOs del recurso de alumnos.
package students

// CreateStudentRequest es el body de POST /v1/students.
// Cualquier tenant id que el cliente mande se ignora y se pisa con el del
// principal, por eso no hay campo para eso acá.
type CreateStudentRequest struct {
	FullName string `json:"full_name"`
	Grade    string `json:"grade"`
}

// StudentResponse es la representación pública de un alumno.
type StudentResponse struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	FullName string `json:"full_name"`
	Grade    string `json:"grade"`
}
