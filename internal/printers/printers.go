package printers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

var defaultPrinters = Printers{}

type IPrinters interface {
	Confirm(message string) bool
	PromptSecret(label string) (string, error)
}

type Printers struct{}

// NewPrinters returns new printers struct
func NewPrinters() *Printers {
	return &Printers{}
}

func (p Printers) Confirm(message string) bool {
	validate := func(input string) error {
		input = strings.ToLower(strings.TrimSpace(input))
		if input != "y" && input != "n" {
			return fmt.Errorf("wrong input %s, was expecting `y` or `n`", input)
		}

		return nil
	}

	msg := message + " Press (y/n)"
	prompt := promptui.Prompt{
		Label:    msg,
		Validate: validate,
	}

	result, err := prompt.Run()
	if err != nil {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(result))

	return input == "y"
}

// PromptSecret asks for a value without echoing it, e.g. a private token.
func (p Printers) PromptSecret(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("value cannot be empty")
			}
			return nil
		},
	}

	result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed %v", err)
	}
	return strings.TrimSpace(result), nil
}

// Confirm prompt a confirmation message
//
// Return true if the user entered Y/y and false if entered n/N
func Confirm(message string) bool {
	return defaultPrinters.Confirm(message)
}

// PromptSecret prompts with the default printers.
func PromptSecret(label string) (string, error) {
	return defaultPrinters.PromptSecret(label)
}
