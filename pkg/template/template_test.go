package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Substitution(t *testing.T) {
	out, err := Render("hello {{ name }}", map[string]string{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRender_Filters(t *testing.T) {
	out, err := Render("{{ name | upper }}", map[string]string{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "BOB", out)
}

func TestRender_FilterChain(t *testing.T) {
	out, err := Render("{{ path | basename | upper }}", map[string]string{"path": "/etc/nginx/nginx.conf"})
	require.NoError(t, err)
	assert.Equal(t, "NGINX.CONF", out)
}

func TestRender_Default(t *testing.T) {
	out, err := Render("{{ missing | default('fallback') }}", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
}

func TestRender_Comment(t *testing.T) {
	out, err := Render("a{# ignore me #}b", nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}

func TestRender_IfElse(t *testing.T) {
	tmpl := "{% if env == 'prod' %}PRODUCTION{% else %}DEV{% endif %}"
	out, err := Render(tmpl, map[string]string{"env": "prod"})
	require.NoError(t, err)
	assert.Equal(t, "PRODUCTION", out)

	out, err = Render(tmpl, map[string]string{"env": "staging"})
	require.NoError(t, err)
	assert.Equal(t, "DEV", out)
}

func TestRender_NestedIf(t *testing.T) {
	tmpl := "{% if a %}{% if b %}AB{% else %}A{% endif %}{% else %}NONE{% endif %}"
	out, err := Render(tmpl, map[string]string{"a": "true", "b": "true"})
	require.NoError(t, err)
	assert.Equal(t, "AB", out)

	out, err = Render(tmpl, map[string]string{"a": "true"})
	require.NoError(t, err)
	assert.Equal(t, "A", out)
}

func TestRender_ForLoop(t *testing.T) {
	tmpl := "{% for item in items %}[{{ item }}]{% endfor %}"
	out, err := Render(tmpl, map[string]string{"items": "a,b,c"})
	require.NoError(t, err)
	assert.Equal(t, "[a][b][c]", out)
}

func TestEvalWhen_Equality(t *testing.T) {
	assert.True(t, EvalWhen("env == 'prod'", map[string]string{"env": "prod"}))
	assert.False(t, EvalWhen("env == 'prod'", map[string]string{"env": "dev"}))
	assert.True(t, EvalWhen("env != 'prod'", map[string]string{"env": "dev"}))
}

func TestEvalWhen_Defined(t *testing.T) {
	assert.True(t, EvalWhen("foo is defined", map[string]string{"foo": "1"}))
	assert.False(t, EvalWhen("foo is defined", map[string]string{}))
	assert.True(t, EvalWhen("foo is undefined", map[string]string{}))
}

func TestEvalWhen_Not(t *testing.T) {
	assert.False(t, EvalWhen("not foo is defined", map[string]string{"foo": "1"}))
}

func TestEvalWhen_And(t *testing.T) {
	vars := map[string]string{"env": "prod", "region": "us"}
	assert.True(t, EvalWhen("env == 'prod' and region == 'us'", vars))
	assert.False(t, EvalWhen("env == 'prod' and region == 'eu'", vars))
}

func TestEvalWhen_TruthyFallback(t *testing.T) {
	assert.True(t, EvalWhen("enabled", map[string]string{"enabled": "yes"}))
	assert.False(t, EvalWhen("enabled", map[string]string{"enabled": "false"}))
	assert.False(t, EvalWhen("enabled", map[string]string{}))
}
