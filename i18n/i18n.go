package i18n

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/jeandeaual/go-locale"
)

var (
	mu   sync.RWMutex
	lang string
)

var supported = []string{"fr", "pt", "es", "ru"}

var translations = map[string]map[string]string{
	"Sync": {
		"fr": "Synchro",
		"pt": "Sincronizar",
		"es": "Sincronizar",
		"ru": "Синхр.",
	},
	"Macros": {
		"fr": "Macros",
		"pt": "Macros",
		"es": "Macros",
		"ru": "Макросы",
	},
	"Movement": {
		"fr": "Mouvements",
		"pt": "Movimento",
		"es": "Movimiento",
		"ru": "Движение",
	},
	"Multi-search": {
		"fr": "Multi-recherche",
		"pt": "Multi-busca",
		"es": "Multi-búsqueda",
		"ru": "Мультипоиск",
	},
	"Abandon": {
		"fr": "Abandon",
		"pt": "Abandonar",
		"es": "Abandonar",
		"ru": "Выход",
	},
	"Fullscreen": {
		"fr": "Plein écran",
		"pt": "Tela cheia",
		"es": "Pantalla completa",
		"ru": "Полный экран",
	},
	"Auto drop": {
		"fr": "Largage auto",
		"pt": "Salto auto",
		"es": "Salto auto",
		"ru": "Автовысадка",
	},
	"AFK host": {
		"fr": "AFK hôte",
		"pt": "AFK anfitrião",
		"es": "AFK anfitrión",
		"ru": "AFK хост",
	},
	"AFK player": {
		"fr": "AFK joueur",
		"pt": "AFK jogador",
		"es": "AFK jugador",
		"ru": "AFK игрок",
	},
	"AFK host+player": {
		"fr": "AFK hôte+joueur",
		"pt": "AFK anfitrião+jogador",
		"es": "AFK anfitrión+jugador",
		"ru": "AFK хост+игрок",
	},
	"Synchronized views": {
		"fr": "Vues synchronisées",
		"pt": "Vistas sincronizadas",
		"es": "Vistas sincronizadas",
		"ru": "Синхронизированные окна",
	},
	"Select at least one view to run the movement macro.": {
		"fr": "Sélectionnez au moins une vue pour lancer les mouvements.",
		"pt": "Selecione ao menos uma vista para iniciar o movimento.",
		"es": "Seleccione al menos una vista para iniciar el movimiento.",
		"ru": "Выберите хотя бы одно окно для запуска движения.",
	},
	"Apply": {
		"fr": "Appliquer",
		"pt": "Aplicar",
		"es": "Aplicar",
		"ru": "Применить",
	},
	"Movement policy": {
		"fr": "Profil de mouvement",
		"pt": "Perfil de movimento",
		"es": "Perfil de movimiento",
		"ru": "Профиль движения",
	},
	"Help": {
		"fr": "Aide",
		"pt": "Ajuda",
		"es": "Ayuda",
		"ru": "Справка",
	},
	"Close": {
		"fr": "Fermer",
		"pt": "Fechar",
		"es": "Cerrar",
		"ru": "Закрыть",
	},
	"host": {
		"fr": "hôte",
		"pt": "anfitrião",
		"es": "anfitrión",
		"ru": "хост",
	},
	"player": {
		"fr": "joueur",
		"pt": "jogador",
		"es": "jugador",
		"ru": "игрок",
	},
}

func init() {
	if forced := strings.TrimSpace(os.Getenv("MULTIVIEW_LANG")); forced != "" {
		slog.Info("language forced", "component", "i18n", "lang", forced)
		SetLang(forced)
		return
	}

	userLocales, err := locale.GetLocales()
	if err != nil {
		slog.Warn("could not get user locale, defaulting to english", "component", "i18n", "err", err)
		SetLang("en")
		return
	}
	if len(userLocales) == 0 {
		slog.Info("no user locale detected, defaulting to english", "component", "i18n")
		SetLang("en")
		return
	}
	SetLang(Match(userLocales[0]))
	slog.Debug("language detected", "component", "i18n", "locale", userLocales[0], "lang", GetLang())
}

// Match maps a system locale such as "pt-BR" to a supported language.
func Match(loc string) string {
	loc = strings.ToLower(loc)
	for _, l := range supported {
		if strings.HasPrefix(loc, l) {
			return l
		}
	}
	return "en"
}

// SetLang overrides the detected language.
func SetLang(l string) {
	mu.Lock()
	defer mu.Unlock()
	lang = Match(l)
}

func T(key string) string {
	mu.RLock()
	defer mu.RUnlock()
	if translated, ok := translations[key][lang]; ok {
		return translated
	}
	return key
}

func GetLang() string {
	mu.RLock()
	defer mu.RUnlock()
	return lang
}
