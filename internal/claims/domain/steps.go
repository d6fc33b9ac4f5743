package domain

import (
	"fmt"
	"time"
)

type StepID string

const (
	StepDeclaration StepID = "declaration"
	StepInstruction StepID = "instruction"
	StepExpertise   StepID = "expertise"
	StepValidation  StepID = "validation"
	StepPaiement    StepID = "paiement"
)

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
)

// ProcessStep is one of the five fixed stages. Only Status and the two
// timestamps vary per claim.
type ProcessStep struct {
	ID              StepID
	Name            string
	Description     string
	RequiredActions []string
	Status          StepStatus
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

type stepDefinition struct {
	id          StepID
	name        string
	description string
	actions     []string
}

var stepDefinitions = []stepDefinition{
	{
		id:          StepDeclaration,
		name:        "Déclaration",
		description: "Réception et enregistrement de la déclaration de sinistre",
		actions: []string{
			"Vérifier l'identité du déclarant",
			"Contrôler la validité du contrat",
			"Enregistrer les circonstances du sinistre",
		},
	},
	{
		id:          StepInstruction,
		name:        "Instruction",
		description: "Analyse du dossier et collecte des pièces justificatives",
		actions: []string{
			"Vérifier les garanties applicables",
			"Demander les pièces manquantes",
			"Désigner un expert si nécessaire",
		},
	},
	{
		id:          StepExpertise,
		name:        "Expertise",
		description: "Évaluation des dommages par l'expert désigné",
		actions: []string{
			"Planifier le rendez-vous d'expertise",
			"Constater les dommages",
			"Déposer le rapport d'expertise",
		},
	},
	{
		id:          StepValidation,
		name:        "Validation",
		description: "Validation de l'offre d'indemnisation",
		actions: []string{
			"Contrôler le rapport d'expertise",
			"Fixer le montant approuvé",
			"Transmettre l'offre à l'assuré",
		},
	},
	{
		id:          StepPaiement,
		name:        "Paiement",
		description: "Règlement de l'indemnité et clôture du dossier",
		actions: []string{
			"Émettre le paiement",
			"Joindre la preuve de paiement",
			"Clôturer le dossier",
		},
	},
}

// StepIDs returns the five step ids in workflow order.
func StepIDs() []StepID {
	out := make([]StepID, len(stepDefinitions))
	for i, def := range stepDefinitions {
		out[i] = def.id
	}
	return out
}

func (id StepID) Valid() bool {
	return stepIndex(id) >= 0
}

// Name returns the display name of the step, or the raw id when unknown.
func (id StepID) Name() string {
	if i := stepIndex(id); i >= 0 {
		return stepDefinitions[i].name
	}
	return string(id)
}

func stepIndex(id StepID) int {
	for i, def := range stepDefinitions {
		if def.id == id {
			return i
		}
	}
	return -1
}

// NewSteps returns the initial configuration: step one in progress from now.
func NewSteps(now time.Time) []ProcessStep {
	steps := make([]ProcessStep, len(stepDefinitions))
	for i, def := range stepDefinitions {
		steps[i] = ProcessStep{
			ID:              def.id,
			Name:            def.name,
			Description:     def.description,
			RequiredActions: def.actions,
			Status:          StepPending,
		}
	}
	started := now
	steps[0].Status = StepInProgress
	steps[0].StartedAt = &started
	return steps
}

// HydrateStep fills the fixed content of a stored step.
func HydrateStep(id StepID, status StepStatus, startedAt, completedAt *time.Time) (ProcessStep, error) {
	i := stepIndex(id)
	if i < 0 {
		return ProcessStep{}, fmt.Errorf("unknown step %q", id)
	}
	switch status {
	case StepPending, StepInProgress, StepCompleted:
	default:
		return ProcessStep{}, fmt.Errorf("unknown step status %q", status)
	}
	def := stepDefinitions[i]
	return ProcessStep{
		ID:              def.id,
		Name:            def.name,
		Description:     def.description,
		RequiredActions: def.actions,
		Status:          status,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
	}, nil
}

// ValidateSteps checks the ordering invariant: all five steps in order,
// everything before current completed, everything after pending, and at most
// one step in progress. The current step itself may be in any state.
func ValidateSteps(steps []ProcessStep, current StepID) error {
	if len(steps) != len(stepDefinitions) {
		return fmt.Errorf("%w: expected %d steps, got %d", ErrStepOrder, len(stepDefinitions), len(steps))
	}
	cur := stepIndex(current)
	if cur < 0 {
		return fmt.Errorf("%w: unknown current step %q", ErrStepOrder, current)
	}
	inProgress := 0
	for i, step := range steps {
		if step.ID != stepDefinitions[i].id {
			return fmt.Errorf("%w: position %d holds %q", ErrStepOrder, i, step.ID)
		}
		if step.Status == StepInProgress {
			inProgress++
		}
		switch {
		case i < cur && step.Status != StepCompleted:
			return fmt.Errorf("%w: %s precedes the current step but is %s", ErrStepOrder, step.ID, step.Status)
		case i > cur && step.Status != StepPending:
			return fmt.Errorf("%w: %s follows the current step but is %s", ErrStepOrder, step.ID, step.Status)
		}
	}
	if inProgress > 1 {
		return fmt.Errorf("%w: %d steps in progress", ErrStepOrder, inProgress)
	}
	return nil
}

// Step returns the step with the given id.
func (c *Claim) Step(id StepID) (*ProcessStep, bool) {
	i := stepIndex(id)
	if i < 0 || i >= len(c.Steps) {
		return nil, false
	}
	return &c.Steps[i], true
}

func (c Claim) stepCompleted(id StepID) bool {
	i := stepIndex(id)
	return i >= 0 && i < len(c.Steps) && c.Steps[i].Status == StepCompleted
}

// StartStep moves the current step from pending to in progress.
func (c *Claim) StartStep(id StepID, now time.Time) error {
	if c.Status.Terminal() {
		return illegal("claim %s is %s", c.Number, c.Status)
	}
	if id != c.CurrentStepID {
		return illegal("step %s is not the current step (%s)", id, c.CurrentStepID)
	}
	step, ok := c.Step(id)
	if !ok {
		return illegal("unknown step %s", id)
	}
	if step.Status != StepPending {
		return illegal("step %s is %s, expected %s", id, step.Status, StepPending)
	}
	started := now
	step.Status = StepInProgress
	step.StartedAt = &started
	c.UpdatedAt = now
	return nil
}

// CompleteStep finishes an in-progress step and moves the pointer to the next
// one without starting it. Completing the last step closes the claim; closed
// reports whether that happened.
func (c *Claim) CompleteStep(id StepID, now time.Time) (closed bool, err error) {
	if c.Status.Terminal() {
		return false, illegal("claim %s is %s", c.Number, c.Status)
	}
	step, ok := c.Step(id)
	if !ok {
		return false, illegal("unknown step %s", id)
	}
	if step.Status != StepInProgress {
		return false, illegal("step %s is %s, expected %s", id, step.Status, StepInProgress)
	}
	completed := now
	step.Status = StepCompleted
	step.CompletedAt = &completed
	c.UpdatedAt = now

	next := stepIndex(id) + 1
	if next < len(stepDefinitions) {
		c.CurrentStepID = stepDefinitions[next].id
		return false, nil
	}
	c.Status = StatusClos
	return true, nil
}

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalTransition, fmt.Sprintf(format, args...))
}
