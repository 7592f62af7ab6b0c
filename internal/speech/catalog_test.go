package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogSelectPrefersExactLocale(t *testing.T) {
	c := NewCatalog(Voice{}, nil)
	c.SetVoices([]Voice{
		{Name: "German.Female-1", Locale: "de-DE"},
		{Name: "English-GB.Male-1", Locale: "en-GB"},
		{Name: "English-US.Female-1", Locale: "en-US"},
		{Name: "English-US.Male-1", Locale: "en-US"},
	})

	v, ok := c.Select("en_US.UTF-8", "")
	require.True(t, ok)
	require.Equal(t, "English-US.Female-1", v.Name)

	v, ok = c.Select("en-US", "english-us.male-1")
	require.True(t, ok)
	require.Equal(t, "English-US.Male-1", v.Name)

	v, ok = c.Select("en-AU", "")
	require.True(t, ok)
	require.Equal(t, "English-GB.Male-1", v.Name)
}

func TestCatalogSelectFallsBack(t *testing.T) {
	c := NewCatalog(Voice{Name: "Fallback", Locale: "en-US"}, nil)
	c.SetVoices([]Voice{{Name: "German.Female-1", Locale: "de-DE"}})

	v, ok := c.Select("fr-FR", "German.Female-1")
	require.True(t, ok)
	require.Equal(t, "German.Female-1", v.Name)

	v, ok = c.Select("fr-FR", "")
	require.True(t, ok)
	require.Equal(t, "Fallback", v.Name)

	empty := NewCatalog(Voice{}, nil)
	v, ok = empty.Select("fr_FR", "")
	require.False(t, ok)
	require.Equal(t, "fr-FR", v.Locale)
}

func TestCatalogLoadMarksReadyEvenOnError(t *testing.T) {
	c := NewCatalog(Voice{}, nil)
	select {
	case <-c.Ready():
		t.Fatal("catalog ready before load")
	default:
	}

	err := c.Load(context.Background(), func(context.Context) ([]Voice, error) {
		return nil, errors.New("unavailable")
	})
	require.Error(t, err)
	<-c.Ready()
	require.Empty(t, c.Voices())
}

func TestCatalogLoadStoresNamedVoices(t *testing.T) {
	c := NewCatalog(Voice{}, nil)
	require.NoError(t, c.Load(context.Background(), func(context.Context) ([]Voice, error) {
		return []Voice{{Name: "A", Locale: "en-US"}, {Name: " ", Locale: "en-US"}}, nil
	}))
	require.Equal(t, []Voice{{Name: "A", Locale: "en-US"}}, c.Voices())
}

func TestNormalizeLocale(t *testing.T) {
	require.Equal(t, "en-US", NormalizeLocale("en_US.UTF-8"))
	require.Equal(t, "de-DE", NormalizeLocale("de_de@euro"))
	require.Equal(t, "fr", NormalizeLocale("FR"))
	require.Equal(t, "", NormalizeLocale("C.UTF-8"))
	require.Equal(t, "", NormalizeLocale(""))
}

func TestHostLocale(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "pt_BR.UTF-8")
	require.Equal(t, "pt-BR", HostLocale())

	t.Setenv("LC_ALL", "en_GB.UTF-8")
	require.Equal(t, "en-GB", HostLocale())
}
