package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/semfield"
	"github.com/graphforge/nodemeta/pkg/validation"
)

// Loader discovers and parses extension modules from a directory,
// matching the teacher's glob-then-load-each-continuing-past-failures
// shape in EnterprisePlugin's LoadPluginsFromDir.
type Loader struct {
	logger logging.Logger
}

// NewLoader creates an extension module Loader.
func NewLoader(logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loader{logger: logger}
}

// LoadDir discovers every "*.yaml"/"*.yml" file in dir, skipping names
// matching "*_examples" or starting with "__" (spec.md §4.3, "Loaded
// extension modules"), and parses each into a Module. A module whose
// file fails to parse is logged and skipped; the rest continue to
// load, matching the loader's log-and-continue posture.
func (l *Loader) LoadDir(dir string) ([]Module, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		l.logger.Info("extension module directory does not exist, skipping", logging.Path(dir))
		return nil, nil
	}

	var candidates []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob extension module directory: %w", err)
		}
		candidates = append(candidates, matches...)
	}
	sort.Strings(candidates)

	var modules []Module
	for _, path := range candidates {
		base := filepath.Base(path)
		stem := strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
		if strings.HasSuffix(stem, "_examples") || strings.HasPrefix(stem, "__") {
			l.logger.Debug("skipping extension module by name pattern", logging.Path(path))
			continue
		}
		mod, err := l.loadModule(path, stem)
		if err != nil {
			l.logger.Warn("failed to load extension module", logging.Path(path), logging.Error(err))
			continue
		}
		modules = append(modules, mod)
	}

	l.logger.Info("extension module loading complete", logging.Count(len(modules)))
	return modules, nil
}

func (l *Loader) loadModule(path, name string) (Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Module{}, fmt.Errorf("read extension module: %w", err)
	}

	var doc moduleDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Module{}, fmt.Errorf("parse extension module yaml: %w", err)
	}

	mod := Module{
		Name:         name,
		CaptureRules: map[rules.ClassName]rules.NodeClassRules{},
		SamplerRoles: map[rules.ClassName]rules.SamplerClassRoles{},
	}

	for className, fields := range doc.Captures {
		classRules := rules.NodeClassRules{}
		for fieldName, spec := range fields {
			field, ok := semfield.ByName(fieldName)
			if !ok {
				l.logger.Warn("extension module names unknown semantic field, skipping entry",
					logging.Path(path), logging.ClassName(className), logging.SemanticField(fieldName))
				continue
			}
			converted, err := convertSpec(spec)
			if err != nil {
				l.logger.Warn("extension module rule shape error, skipping entry",
					logging.Path(path), logging.ClassName(className), logging.SemanticField(fieldName), logging.Error(err))
				continue
			}
			classRules[field] = converted
		}
		if len(classRules) > 0 {
			mod.CaptureRules[rules.ClassName(className)] = classRules
		}
	}

	for className, roles := range doc.Samplers {
		classRoles := rules.SamplerClassRoles{}
		for roleName, inputName := range roles {
			role := rules.Role(roleName)
			switch role {
			case rules.RolePositive, rules.RoleNegative, rules.RoleLatentImage:
				classRoles[role] = inputName
			default:
				l.logger.Warn("extension module names unknown sampler role, skipping entry",
					logging.Path(path), logging.ClassName(className), logging.String("role", roleName))
			}
		}
		if len(classRoles) > 0 {
			mod.SamplerRoles[rules.ClassName(className)] = classRoles
		}
	}

	return mod, nil
}

// convertSpec validates and converts one YAML rule spec into a
// rules.Spec, reusing the same exclusive-variant and closed-set checks
// the validation package applies to user JSON documents, since
// extension modules carry the same CaptureRule shape (spec.md §3) on
// a different wire format.
func convertSpec(y ruleSpecYAML) (rules.Spec, error) {
	doc := validation.RuleSpecDoc{
		FieldName:           y.FieldName,
		Prefix:              y.Prefix,
		Fields:              y.Fields,
		Selector:            validation.SelectorKind(y.Selector),
		Args:                y.Args,
		Format:              validation.FormatterKind(y.Format),
		Validate:            validation.PredicateKind(y.Validate),
		InlineLoraCandidate: y.InlineLoraCandidate,
	}
	if err := validation.ValidateRuleSpec(doc); err != nil {
		return rules.Spec{}, err
	}
	return rules.Spec{
		FieldName:           doc.FieldName,
		Prefix:              doc.Prefix,
		Fields:              doc.Fields,
		Selector:            doc.Selector,
		Args:                doc.Args,
		Format:              doc.Format,
		Validate:            doc.Validate,
		InlineLoraCandidate: doc.InlineLoraCandidate,
	}, nil
}
