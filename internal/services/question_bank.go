package services

const MandatoryIntroText = "Présentez-vous en quelques minutes : votre parcours, vos expériences marquantes et ce qui vous motive pour ce poste."

type behaviouralItem struct {
	Theme string
	Text  string
}

var behaviouralBank = []behaviouralItem{
	{"teamwork", "Racontez une situation où vous avez dû collaborer étroitement avec une équipe pour atteindre un objectif commun."},
	{"teamwork", "Décrivez votre rôle dans le projet d'équipe dont vous êtes le plus fier."},
	{"conflict", "Parlez-nous d'un désaccord avec un collègue et de la manière dont vous l'avez résolu."},
	{"conflict", "Comment avez-vous géré une situation où un client ou un responsable n'était pas satisfait de votre travail ?"},
	{"initiative", "Donnez un exemple où vous avez pris une initiative sans qu'on vous le demande."},
	{"initiative", "Décrivez une amélioration que vous avez proposée et mise en place dans votre travail."},
	{"stress", "Racontez un moment où vous avez dû travailler sous forte pression ou avec un délai très court."},
	{"stress", "Comment organisez-vous vos priorités lorsque plusieurs urgences arrivent en même temps ?"},
	{"problem-solving", "Décrivez un problème complexe que vous avez résolu et la démarche que vous avez suivie."},
	{"problem-solving", "Parlez-nous d'une erreur que vous avez commise et de ce que vous en avez appris."},
	{"adaptability", "Racontez une situation où vous avez dû vous adapter rapidement à un changement important."},
	{"adaptability", "Comment avez-vous appris une nouvelle compétence ou un nouvel outil dans un délai court ?"},
	{"communication", "Décrivez une situation où vous avez dû expliquer un sujet complexe à une personne non experte."},
	{"leadership", "Parlez-nous d'une fois où vous avez dû motiver ou accompagner d'autres personnes."},
}

var fallbackTechnicalQuestions = []string{
	"Décrivez l'architecture technique d'un projet récent sur lequel vous avez travaillé et vos choix principaux.",
	"Comment vous assurez-vous de la qualité et de la fiabilité du code que vous livrez ?",
	"Expliquez comment vous abordez le diagnostic d'un problème de performance en production.",
	"Quels outils et pratiques utilisez-vous pour tester votre travail avant une mise en production ?",
	"Comment vous tenez-vous à jour sur les technologies utiles à votre métier ?",
}
