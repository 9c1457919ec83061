package aigen

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaName = "knowledge_graph_suggestions"

var (
	conceptTypes      = []string{"topic", "skill", "tool", "framework", "language", "principle", "pattern"}
	difficultyLevels  = []string{"beginner", "intermediate", "advanced"}
	relationshipTypes = []string{"prerequisite", "builds_on", "related_to", "part_of", "alternative_to", "applies_to"}
	coverageLevels    = []string{"introduces", "covers", "masters"}
)

// suggestionSchema strict 为 true 时所有字段必填且禁止额外字段，供 OpenAI 结构化输出使用
func suggestionSchema(strict bool) map[string]interface{} {
	object := func(props map[string]interface{}, required ...string) map[string]interface{} {
		o := map[string]interface{}{
			"type":       "object",
			"properties": props,
		}
		if strict {
			o["required"] = sortedKeys(props)
			o["additionalProperties"] = false
		} else {
			o["required"] = required
		}
		return o
	}
	unit := map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1}
	name := map[string]interface{}{"type": "string", "minLength": 1}

	concept := object(map[string]interface{}{
		"name":             name,
		"type":             map[string]interface{}{"type": "string", "enum": conceptTypes},
		"difficulty_level": map[string]interface{}{"type": "string", "enum": difficultyLevels},
		"description":      map[string]interface{}{"type": "string"},
		"estimated_hours":  map[string]interface{}{"type": []string{"number", "null"}, "minimum": 0},
	}, "name", "type", "difficulty_level", "description")

	relationship := object(map[string]interface{}{
		"source_concept":    name,
		"target_concept":    name,
		"relationship_type": map[string]interface{}{"type": "string", "enum": relationshipTypes},
		"strength":          unit,
		"description":       map[string]interface{}{"type": "string"},
	}, "source_concept", "target_concept", "relationship_type", "strength")

	mapping := object(map[string]interface{}{
		"concept_name":   name,
		"coverage_level": map[string]interface{}{"type": "string", "enum": coverageLevels},
		"is_primary":     map[string]interface{}{"type": "boolean"},
		"weight":         unit,
	}, "concept_name", "coverage_level")

	return object(map[string]interface{}{
		"concepts":        map[string]interface{}{"type": "array", "items": concept},
		"relationships":   map[string]interface{}{"type": "array", "items": relationship},
		"course_mappings": map[string]interface{}{"type": "array", "items": mapping},
	}, "concepts", "relationships")
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// 编译器需要的是解析后的 JSON 值
		raw, err := json.Marshal(suggestionSchema(false))
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		url := fmt.Sprintf("schema://%s.json", schemaName)
		if err := c.AddResource(url, doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(url)
	})
	return compiled, compileErr
}

// ValidateData 校验生成结果的 data 部分，通过后解码
func ValidateData(raw json.RawMessage) (*Data, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalidPayload, err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if data.Concepts == nil {
		data.Concepts = []Concept{}
	}
	if data.Relationships == nil {
		data.Relationships = []Relationship{}
	}
	return &data, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
