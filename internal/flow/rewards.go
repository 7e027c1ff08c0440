package flow

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

// RewardsForm carries the signup fields entered on the rewards step.
type RewardsForm struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"required,e164|numeric"`
}

// RewardsController handles the optional rewards signup step. Submitting
// validates the form; declining completes immediately with no enrollment.
type RewardsController struct {
	mu       sync.Mutex
	validate *validator.Validate
	complete CompletionHandler
	done     bool
}

func newRewardsController(complete CompletionHandler) *RewardsController {
	return &RewardsController{
		validate: validator.New(),
		complete: complete,
	}
}

func (r *RewardsController) update(Context) {}

func (r *RewardsController) teardown() {}

// Submit validates the form and completes the step with the enrollment
// details. Validation errors leave the step open for correction.
func (r *RewardsController) Submit(form RewardsForm) error {
	if err := r.validate.Struct(form); err != nil {
		return err
	}
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return nil
	}
	r.done = true
	r.mu.Unlock()
	r.complete(StepRewards, map[string]any{
		"enrolled":  true,
		"firstName": form.FirstName,
		"lastName":  form.LastName,
		"email":     form.Email,
		"phone":     form.Phone,
	})
	return nil
}

// Decline completes the step without enrolling.
func (r *RewardsController) Decline() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.mu.Unlock()
	r.complete(StepRewards, map[string]any{"enrolled": false})
}
