package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/picogrid/swarm-defense/pkg/simulation"
	"golang.org/x/term"
)

// SkipPromptsEnv disables interactive prompts when set to "true"
const SkipPromptsEnv = "SWARM_SKIP_PROMPTS"

// Interactive reports whether prompts can be shown: stdin must be a terminal
// and prompts must not be disabled
func Interactive() bool {
	if os.Getenv(SkipPromptsEnv) == "true" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// EnvKey is the environment variable that overrides a parameter
func EnvKey(name string) string {
	return "SWARM_" + strings.ToUpper(name)
}

// PromptForParameters resolves every parameter. Environment overrides win;
// otherwise the user is prompted, or the default is used when prompts are
// unavailable.
func PromptForParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	interactive := Interactive()

	for _, param := range params {
		value, err := resolveParameter(param, interactive)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		if value != nil {
			result[param.Name] = value
		}
	}

	return result, nil
}

func resolveParameter(param simulation.Parameter, interactive bool) (interface{}, error) {
	if envValue := os.Getenv(EnvKey(param.Name)); envValue != "" {
		parsed, err := param.Parse(envValue)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvKey(param.Name), err)
		}
		if !interactive {
			return parsed, nil
		}
		param.Default = parsed
	}

	if !interactive {
		if param.Default == nil && param.Required {
			return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
		}
		return param.Default, nil
	}

	return promptForParameter(param)
}

// promptForParameter asks for one value, validating it with the parameter's
// own parser
func promptForParameter(param simulation.Parameter) (interface{}, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	if param.Type == "boolean" {
		defaultBool := defaultStr == "true"
		var result bool
		if err := survey.AskOne(&survey.Confirm{Message: param.Description, Default: defaultBool}, &result); err != nil {
			return nil, err
		}
		return result, nil
	}

	if len(param.Options) > 0 {
		var result string
		prompt := &survey.Select{
			Message: param.Description,
			Options: param.Options,
			Default: defaultStr,
		}
		if err := survey.AskOne(prompt, &result); err != nil {
			return nil, err
		}
		return result, nil
	}

	message := param.Description
	if param.Type == "duration" {
		message += " (e.g., 5m, 1h30m, 30s)"
	}

	validators := []survey.Validator{func(val interface{}) error {
		str, _ := val.(string)
		if str == "" && !param.Required {
			return nil
		}
		_, err := param.Parse(str)
		return err
	}}
	if param.Required {
		validators = append([]survey.Validator{survey.Required}, validators...)
	}

	var result string
	prompt := &survey.Input{Message: message, Default: defaultStr}
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.ComposeValidators(validators...))); err != nil {
		return nil, err
	}
	if result == "" {
		return param.Default, nil
	}
	return param.Parse(result)
}
