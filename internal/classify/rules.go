package classify

// Rule binds one category to the keyword phrases that vote for it.
type Rule struct {
	Category Category
	Keywords []string
}

// RuleSet is the ordered rule table for one language profile. Slice order is
// significant: on an exact score tie the category listed first wins.
type RuleSet []Rule

const defaultLanguage = "en"

var ruleSets = map[string]RuleSet{
	"en": {
		{Category: "Security", Keywords: []string{"security", "verification", "auth", "2fa", "sign-in", "password"}},
		{Category: "Finance", Keywords: []string{"invoice", "receipt", "bill", "payment", "transfer", "order #"}},
		{Category: "Marketing", Keywords: []string{"newsletter", "unsubscribe", "discount", "promo", "sale", "off"}},
		{Category: "Job Market", Keywords: []string{"resume", "cv", "hiring", "job offer", "candidate"}},
		{Category: "Tech", Keywords: []string{"error", "exception", "timeout", "deploy", "server", "aws", "gitlab"}},
		{Category: "Meetings", Keywords: []string{"meeting", "zoom", "invite", "scheduled", "agenda"}},
		{Category: "Travel", Keywords: []string{"flight", "hotel", "booking", "reservation", "uber", "train"}},
		{Category: "Social", Keywords: []string{"linkedin", "twitter", "facebook", "instagram", "connection"}},
	},
	"fr": {
		{Category: "École / Université", Keywords: []string{"mines", "nancy", "université", "scolarité", "inscription", "examens", "notes", "emploi du temps", "edt", "planning", "secrétariat", "administration", "cours", "tp", "td"}},
		{Category: "Projets & Associations", Keywords: []string{"projet", "association", "asso", "club", "événement", "hackathon", "conférence", "réunion", "bde", "bds", "bda"}},
		{Category: "Stages & Emploi", Keywords: []string{"stage", "offre", "emploi", "alternance", "candidature", "recrutement", "cv", "entretien", "job", "career"}},
		{Category: "Tech / Informatique", Keywords: []string{"github", "gitlab", "serveur", "bug", "erreur", "api", "cloud", "aws", "python", "code", "docker", "linux"}},
		{Category: "Sécurité & Comptes", Keywords: []string{"sécurité", "connexion", "authentification", "mot de passe", "vérification", "code", "alerte", "tentative", "2fa"}},
		{Category: "Réseaux sociaux", Keywords: []string{"linkedin", "instagram", "facebook", "discord", "twitter", "notification", "invitation", "message"}},
		{Category: "Voyages & Mobilité", Keywords: []string{"train", "sncf", "vol", "billet", "réservation", "uber", "taxi", "tram", "bus", "blablacar"}},
		{Category: "Achats & Services", Keywords: []string{"commande", "livraison", "colis", "amazon", "facture", "paiement", "abonnement", "netflix", "spotify"}},
		{Category: "Administratif personnel", Keywords: []string{"contrat", "assurance", "mutuelle", "attestation", "banque", "document", "dossier", "impôts", "caf", "revolut"}},
		{Category: "Marketing / Newsletters", Keywords: []string{"newsletter", "promotion", "offre", "réduction", "désinscription", "publicité", "soldes"}},
	},
}

// Rules returns the rule table for the given language profile, falling back
// to the default ("en") table when the language is unrecognized.
func Rules(language string) RuleSet {
	if rs, ok := ruleSets[language]; ok {
		return rs
	}
	return ruleSets[defaultLanguage]
}
