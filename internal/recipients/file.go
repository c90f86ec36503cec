package recipients

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmespath/go-jmespath"
)

// DefaultExpression projects a JSON array of {identity, name, email} objects.
const DefaultExpression = "[].{identity: identity, name: name, email: email}"

// NewFileDirectory loads a JSON recipient document from path. The JMESPath
// expression must project the document to a list of {identity, name, email}
// objects; an empty expression selects DefaultExpression.
func NewFileDirectory(path, expression string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipients file: %w", err)
	}
	return ParseDirectory(data, expression)
}

// ParseDirectory builds a Static directory from a JSON document.
func ParseDirectory(data []byte, expression string) (Static, error) {
	if expression == "" {
		expression = DefaultExpression
	}

	exp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %v", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing recipients document: %w", err)
	}

	result, err := exp.Search(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %v", err)
	}

	rows, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expression result is not a list")
	}

	dir := make(Static)
	for i, row := range rows {
		m, ok := row.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expression result item %d is not an object", i)
		}
		identity, _ := m["identity"].(string)
		if identity == "" {
			continue
		}
		name, _ := m["name"].(string)
		email, _ := m["email"].(string)
		dir[identity] = append(dir[identity], Recipient{Name: name, Email: email})
	}
	return dir, nil
}
