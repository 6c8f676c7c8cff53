// Package jobflow defines the per-job Kanban machine.
//
// A job moves freely among six recruitment lanes for its operational
// lifetime; there is no terminal lane. The one coupling between this
// machine and anything else is the hiring-outcome decision: a negative
// result in contratacao rewinds the job to entrevistas, a positive one
// closes the job.
package jobflow

import "fmt"

// Lane values mirror the recruitment_stage column in PostgreSQL.
type Lane string

const (
	LaneCadastro     Lane = "cadastro"
	LaneTriagem      Lane = "triagem"
	LaneEntrevistas  Lane = "entrevistas"
	LaneSelecao      Lane = "selecao"
	LaneEnvioCliente Lane = "envio_cliente"
	LaneContratacao  Lane = "contratacao"
)

// Lanes lists the Kanban lanes in board order.
var Lanes = []Lane{
	LaneCadastro, LaneTriagem, LaneEntrevistas,
	LaneSelecao, LaneEnvioCliente, LaneContratacao,
}

// ParseLane converts a raw string to a Lane, returning an error for
// unknown values.
func ParseLane(s string) (Lane, error) {
	l := Lane(s)
	for _, known := range Lanes {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown recruitment stage %q", s)
}

// HiringResult is the contratacao outcome.
type HiringResult string

const (
	ResultPositivo HiringResult = "positivo"
	ResultNegativo HiringResult = "negativo"
)

// ParseHiringResult converts a raw string to a HiringResult.
func ParseHiringResult(s string) (HiringResult, error) {
	switch r := HiringResult(s); r {
	case ResultPositivo, ResultNegativo:
		return r, nil
	}
	return "", fmt.Errorf("unknown hiring result %q", s)
}
