package conversation

import "fmt"

// Fixed assistant lines.
const (
	WelcomeMessage = "🌟 Welcome to your personal Career Path Assistant! I'm here to help you discover your perfect career journey.\n\nLet's start by getting to know you better. What's your name?"

	ReligionPrompt = "What's your religion or cultural background? (This helps me greet you properly)"

	AnalyzingMessage = "Perfect! 🎯 I have all the information I need. Let me analyze your profile and create a personalized career path for you..."

	ClosingMessage = "That's your complete career roadmap! 🎉 You can start a new conversation anytime to explore different paths or ask specific questions. Good luck on your journey! 💪"

	ApologyMessage = "I apologize, but I encountered an error while generating your career path. Please try starting a new conversation."
)

// NameAcknowledgement answers the name and asks for the country.
func NameAcknowledgement(name string) string {
	return fmt.Sprintf("Nice to meet you, %s! 🎉\n\nWhich country are you from?", name)
}

// GreetingMessage greets the user and asks the first profile question.
func GreetingMessage(greeting, name, firstQuestion string) string {
	return fmt.Sprintf("%s %s! 🙏\n\nNow let's dive into your career journey. %s", greeting, name, firstQuestion)
}

// ResultMessage wraps the generated analysis.
func ResultMessage(analysis string) string {
	return "🚀 Here's your personalized career path analysis:\n\n" + analysis
}
