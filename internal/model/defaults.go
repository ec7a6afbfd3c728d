package model

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		Version: "2026.10-1",
		Oracle: OracleConfig{
			Provider:   "", // Disabled by default
			Timeout:    30,
			MaxTokens:  2000,
			MaxRetries: 3,
			BackoffMS:  500,
		},
		Classifier: ClassifierConfig{
			BatchSize:           15,
			CoveredThreshold:    0.80,
			NotCoveredThreshold: 0.60,
			VagueConfidenceCap:  0.40,
			VagueMinLength:      4,
			VaguePatterns: []string{
				`(?i)^(diverses|div\.?|sonstiges|kleinteile|material|teile)$`,
				`(?i)^(misc\.?|miscellaneous|parts?|sundries|various)$`,
				`(?i)^(divers|pièces|fournitures|vari|varie|ricambi)$`,
			},
		},
		Rules: RulesConfig{
			Rules: []RuleConfig{
				{
					ID:              "CREDIT_LINE",
					AmountCondition: "lt",
					AmountValue:     0,
					Status:          StatusNotCovered,
					Reason:          "Credit or discount line",
				},
				{
					ID:      "DISPOSAL",
					Pattern: `(?i)(entsorgung|umweltpauschale|altöl|disposal|environmental fee|élimination|smaltimento)`,
					Status:  StatusNotCovered,
					Reason:  "Disposal and environmental charges are not covered",
				},
				{
					ID:      "CONSUMABLES",
					Pattern: `(?i)(kleinmaterial|verbrauchsmaterial|consumable|petit matériel|materiale di consumo|bremsenreiniger|frostschutz|antifreeze|scheibenwasser|adblue)`,
					Status:  StatusNotCovered,
					Reason:  "Consumables are not covered",
				},
				{
					ID:      "CLEANING",
					Pattern: `(?i)(reinigung|cleaning|nettoyage|pulizia|fahrzeugwäsche|car wash)`,
					Status:  StatusNotCovered,
					Reason:  "Cleaning is not covered",
				},
				{
					ID:      "RENTAL",
					Pattern: `(?i)(mietwagen|ersatzwagen|ersatzfahrzeug|rental car|courtesy car|véhicule de remplacement|auto sostitutiva)`,
					Status:  StatusNotCovered,
					Reason:  "Replacement vehicles are not covered",
				},
				{
					ID:      "TOWING",
					Pattern: `(?i)(abschlepp|towing|remorquage|traino|soccorso stradale)`,
					Status:  StatusNotCovered,
					Reason:  "Towing is not covered",
				},
			},
			FeeRule: RuleConfig{
				ID:        "FEE",
				ItemTypes: []ItemType{ItemTypeFee},
				Status:    StatusNotCovered,
				Reason:    "Fees and surcharges are not covered",
			},
			PartCatalog: []PartCatalogEntry{
				{Prefix: "TRB-", Category: "turbo", Component: "turbocharger"},
				{Prefix: "ENG-HG", Category: "engine", Component: "cylinder head gasket"},
				{Prefix: "ENG-CH", Category: "engine", Component: "cylinder head"},
				{Prefix: "ENG-WP", Category: "cooling", Component: "water pump"},
				{Prefix: "TRN-", Category: "transmission", Component: "gearbox"},
				{Prefix: "ELC-ALT", Category: "electrical", Component: "alternator"},
				{Prefix: "ELC-STR", Category: "electrical", Component: "starter motor"},
			},
			CatalogConfidence: 0.95,
		},
		Vocabulary: VocabularyConfig{
			Version:       "vocab-2026.10",
			MinTermLength: 4,
			Entries:       defaultVocabulary(),
		},
		Linkage: LinkageConfig{
			AncillaryPatterns: []string{
				`(?i)(schraube|mutter|bolzen|bolt|screw|nut\b|vis\b|écrou|vite|dado)`,
				`(?i)(dichtung|dichtring|gasket|seal|o-ring|joint|guarnizione|klemme|clip|schelle)`,
			},
			NonCoveredLaborPatterns: []string{
				`(?i)(diagnos|fehlerspeicher|fehlersuche|fault finding)`,
				`(?i)(inspektion|inspection|prüfung|pruefung|check|contrôle|controle|controllo)`,
				`(?i)(kalibrier|calibrat|étalonnage|calibrage|taratura|einstell|adjust)`,
				`(?i)(probefahrt|test drive|essai routier|prova su strada)`,
			},
			MinTokenLength: 4,
		},
		Screening: ScreeningConfig{
			WaitingDays:           30,
			ServiceIntervalMonths: 24,
			ServiceIntervalKM:     30000,
			ReportingDays:         30,
			FaultCodeCategories: map[string]string{
				"P00":   "engine",
				"P01":   "engine",
				"P02":   "engine",
				"P03":   "engine",
				"P0234": "turbo",
				"P0299": "turbo",
				"P07":   "transmission",
				"P08":   "transmission",
				"P09":   "transmission",
				"P0217": "cooling",
				"P0128": "cooling",
				"B":     "electrical",
				"U":     "electrical",
				"C":     "brakes",
			},
			ConsequentialPatterns: []string{
				`(?i)(folgeschaden|consequential|dommage consécutif|danno conseguente)`,
				`(?i)(infolge|caused by|resulting from|suite à|a causa di)`,
			},
		},
		Decision: DecisionConfig{
			InconclusiveTolerance: 0,
		},
		Confidence: ConfidenceConfig{
			Weights: ConfidenceWeights{
				DocumentQuality:     0.15,
				DataCompleteness:    0.20,
				Consistency:         0.15,
				CoverageReliability: 0.30,
				DecisionClarity:     0.20,
			},
			HighBand:     0.80,
			ModerateBand: 0.55,
		},
		Cache: CacheConfig{
			Enabled:   true,
			TTL:       24 * 7, // 7 days
			MaxSizeMB: 256,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2.0,
			Burst:             4,
			Providers: map[string]ProviderRate{
				"ollama": {RequestsPerSecond: 0}, // local, no quota
			},
		},
		Concurrency: ConcurrencyConfig{
			OracleWorkers: 4,
			Claims:        4,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "adjudex.db",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30,
			WriteTimeout: 120,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultVocabulary() []VocabularyEntry {
	return []VocabularyEntry{
		{Category: "engine", Component: "cylinder head", Terms: []string{"cylinder head", "zylinderkopf", "culasse", "testata"}},
		{Category: "engine", Component: "cylinder head gasket", Terms: []string{"cylinder head gasket", "head gasket", "zylinderkopfdichtung", "joint de culasse", "guarnizione testata"}},
		{Category: "engine", Component: "timing chain", Terms: []string{"timing chain", "steuerkette", "chaîne de distribution", "catena di distribuzione"}},
		{Category: "engine", Component: "crankshaft", Terms: []string{"crankshaft", "kurbelwelle", "vilebrequin", "albero motore"}},
		{Category: "engine", Component: "camshaft", Terms: []string{"camshaft", "nockenwelle", "arbre à cames", "albero a camme"}},
		{Category: "engine", Component: "piston", Terms: []string{"piston", "kolben", "pistone"}},
		{Category: "engine", Component: "oil pump", Terms: []string{"oil pump", "ölpumpe", "pompe à huile", "pompa olio"}},
		{Category: "turbo", Component: "turbocharger", Terms: []string{"turbocharger", "turbo", "turbolader", "turbocompresseur", "turbocompressore"}},
		{Category: "cooling", Component: "water pump", Terms: []string{"water pump", "wasserpumpe", "pompe à eau", "pompa acqua"}},
		{Category: "cooling", Component: "radiator", Terms: []string{"radiator", "kühler", "radiateur", "radiatore"}},
		{Category: "cooling", Component: "thermostat", Terms: []string{"thermostat", "termostato"}},
		{Category: "transmission", Component: "gearbox", Terms: []string{"gearbox", "transmission", "getriebe", "boîte de vitesses", "cambio"}},
		{Category: "transmission", Component: "clutch", Terms: []string{"clutch", "kupplung", "embrayage", "frizione"}},
		{Category: "transmission", Component: "torque converter", Terms: []string{"torque converter", "drehmomentwandler", "convertisseur de couple", "convertitore di coppia"}},
		{Category: "electrical", Component: "alternator", Terms: []string{"alternator", "lichtmaschine", "alternateur", "alternatore"}},
		{Category: "electrical", Component: "starter motor", Terms: []string{"starter motor", "anlasser", "starter", "démarreur", "motorino di avviamento"}},
		{Category: "electrical", Component: "control unit", Terms: []string{"control unit", "steuergerät", "calculateur", "centralina"}},
		{Category: "fuel_system", Component: "injector", Terms: []string{"injector", "einspritzdüse", "injektor", "injecteur", "iniettore"}},
		{Category: "fuel_system", Component: "fuel pump", Terms: []string{"fuel pump", "kraftstoffpumpe", "benzinpumpe", "pompe à carburant", "pompa carburante"}},
		{Category: "fuel_system", Component: "high pressure pump", Terms: []string{"high pressure pump", "hochdruckpumpe", "pompe haute pression", "pompa alta pressione"}},
		{Category: "steering", Component: "steering rack", Terms: []string{"steering rack", "lenkgetriebe", "crémaillère", "scatola sterzo"}},
		{Category: "steering", Component: "power steering pump", Terms: []string{"power steering pump", "servopumpe", "pompe de direction assistée", "pompa servosterzo"}},
		{Category: "air_conditioning", Component: "ac compressor", Terms: []string{"ac compressor", "klimakompressor", "compresseur de climatisation", "compressore clima"}},
		{Category: "brakes", Component: "brake pads", Terms: []string{"brake pads", "bremsbeläge", "plaquettes de frein", "pastiglie freno"}},
		{Category: "brakes", Component: "abs unit", Terms: []string{"abs unit", "abs-steuergerät", "abs hydraulikeinheit", "bloc abs", "centralina abs"}},
	}
}
