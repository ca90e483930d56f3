package phrase

import (
	"fmt"
	"strings"
)

// Banks groups every phrase family the engine draws from. Constructed once
// at startup and passed in explicitly; nothing here mutates after that.
type Banks struct {
	ConsultCTAs        []string
	RenderCTAs         []string // each carries a %s slot for the specific item
	FollowUps          []string
	ExploreFollowUps   []string
	SizeFollowUps      []string
	FocusFollowUps     []string
	FeatureFollowUps   []string
	TimelineFollowUps  []string
	ReEngagement       []string
	RenderInProgress   []string
	ContactCollection  []string
	FieldPrompts       map[string]string
	PartialInfoOffers  []string
	SoftApproaches     []string
	RenderTimelines    []string
	CredibilityLines   []string
	RestartLines       []string
	ConsultFocusSuffix map[string]string
	// Philosophy holds design-philosophy lines keyed by topic. The
	// purpose_driven entries carry two %s slots: the feature and the role it
	// plays for this customer.
	Philosophy map[string][]string
}

// DefaultBanks returns the stock wording.
func DefaultBanks() Banks {
	return Banks{
		ConsultCTAs: []string{
			"Sounds like you're getting close to wanting an in-home consult so we can walk the space and see your vision come together.",
			"I'm thinking it might be time to have someone come out and take a look at your space so we can walk through the possibilities together.",
			"You know what? It sounds like you're ready to have us come take a look at your backyard and talk through the details.",
			"Based on what you're telling me, I think you'd benefit from having one of our team members come out and see the space firsthand.",
			"It feels like we're at the point where seeing your actual space would help us give you better ideas. Want to set up a time to walk through it?",
			"I'm getting the sense you're serious about this. Maybe it's time to have someone come out and see what we're working with.",
			"Sounds like you've got a good handle on what you want. Ready to have us come take a look at your backyard?",
			"I think we've covered enough that it would make sense to have one of our experts come see your space and talk specifics.",
		},
		RenderCTAs: []string{
			"If having someone come out isn't convenient right now, we could sketch up that %s for you. Just need a photo of your backyard.",
			"No worries if you're not ready for a visit yet. We can actually render that %s you mentioned if you send us a quick photo.",
			"If you want to see it before we schedule anything, we can create a visual of that %s. Just need a pic of your space.",
			"Totally understand if you want to see it first. We can sketch that %s for your yard if you send a photo.",
			"If a visit feels like too big a step right now, we can render what that %s would look like in your space.",
			"Want to visualize it first? We can create a concept of that %s. Just need a photo of your backyard.",
			"If you're more comfortable starting with a visual, we can sketch up that %s for your space.",
		},
		FollowUps: []string{
			"What's drawing you to the idea of a pool?",
			"Tell me about your backyard space situation.",
			"Are you leaning more toward relaxing or entertaining?",
			"What's your vision for how you'd use the space?",
			"Is this more for family time or having friends over?",
			"How do you picture yourself using it most days?",
			"What got you thinking about pools in the first place?",
			"Any particular features catching your attention?",
			"What's your timeline looking like for this?",
			"Tell me about your outdoor setup right now.",
			"What kind of vibe are you going for back there?",
			"What would make this pool perfect for your lifestyle?",
		},
		ExploreFollowUps: []string{
			"What's drawing you to cocktail pools specifically?",
			"Tell me about your backyard space.",
			"Are you thinking more relaxing or entertaining?",
		},
		SizeFollowUps: []string{
			"Are you leaning toward the 12x24 or thinking bigger with the 14x28?",
			"What size feels right for your space?",
		},
		FocusFollowUps: []string{
			"How do you picture using it most, quiet evenings or having people over?",
			"Is this more your personal retreat or the family gathering spot?",
		},
		FeatureFollowUps: []string{
			"Any features catching your eye? Tanning ledge, seating, lighting?",
			"What would make this pool perfect for your lifestyle?",
		},
		TimelineFollowUps: []string{
			"What's your timeline looking like for this?",
			"Are you thinking this year or just planning ahead?",
		},
		ReEngagement: []string{
			"Hey! Good to see you back. Still thinking about that pool?",
			"Welcome back! How's the pool planning going?",
			"Hey there! Still exploring pool options?",
			"Good to see you again. Any new thoughts on the pool?",
			"Welcome back! What's on your mind today?",
		},
		RenderInProgress: []string{
			"Hey! We're still working on that render you requested. Should be ready in the next day or two. Anything change on your end?",
			"Good to see you back! Your render is in progress and we'll have it ready soon. Any new thoughts while you wait?",
			"Hey there! Still working on your visual concept. What's on your mind today?",
		},
		ContactCollection: []string{
			"Perfect! To get that render started, I just need your name, email, phone, and a photo of your backyard.",
			"Great! I'll need a few quick things to create your render: name, email, phone number, and a backyard photo.",
			"Awesome! For your personalized render, I'll need your name, email, phone, and a pic of your space.",
			"Sounds good! To make this render specific to your space, I need your name, email, phone, and a backyard photo.",
		},
		FieldPrompts: map[string]string{
			"name":  "What name should I put this under?",
			"email": "What's the best email to send the render to?",
			"phone": "And a phone number in case we need to clarify anything?",
			"photo": "Perfect! Last thing, just need a photo of your backyard space.",
		},
		PartialInfoOffers: []string{
			"No worries, if you're more comfortable just starting with name and email, that works too. We can fill in the rest later.",
			"Want to start simple? Just name and email gets us started. We can grab the rest when you're ready.",
			"Tell you what, just give me your name and email for now. We can sort out the details later.",
		},
		SoftApproaches: []string{
			"The photo helps us design for your space, and the contact info just lets us loop back once the render's ready. We won't spam you.",
			"We keep it simple. Just need to know where to send it and how to reach you when it's done.",
			"Contact info is just so we can get it back to you. We're not big on follow-up calls unless you want them.",
		},
		RenderTimelines: []string{
			"It usually takes about 2 to 3 business days once we have your info and photo.",
			"Takes a couple business days on our side. We build the render manually and check the layout before we send it over.",
			"We'll have it ready in 2-3 business days. We review it internally to make sure it's a pool we'd actually build.",
		},
		CredibilityLines: []string{
			"I should mention, I'm trained by Rusty, who's a Master CBP (Certified Building Professional) with over two decades of pool building experience.",
			"By the way, everything I'm sharing comes from Rusty's expertise. He's a Master Certified Building Professional with 20+ years in the business.",
			"Just so you know, I'm backed by Rusty's 20+ years as a Master CBP. He's built hundreds of pools across Oklahoma.",
		},
		RestartLines: []string{
			"Let me approach this differently. What's the main thing you want to know about cocktail pools?",
			"Maybe I can help narrow this down. What's your biggest question or concern right now?",
			"Tell you what, what would make the biggest difference in helping you decide?",
		},
		ConsultFocusSuffix: map[string]string{
			"entertaining": " We can talk through the layout for your gatherings.",
			"relaxation":   " We can explore how to make it your perfect retreat.",
			"family":       " We can design it with your family's needs in mind.",
		},
		Philosophy: map[string][]string{
			"purpose_driven": {
				"That %s isn't just pretty. It's your %s.",
				"Every element should serve a purpose, and that %s is perfect as your %s.",
				"I like that thinking. A %s gives you a real %s, not just looks.",
			},
			"clean_geometry": {
				"We keep the lines clean and modern. Nothing fussy, just elegant.",
				"Simple geometry works best. Clean rectangles that complement your space.",
				"I prefer clean, modern lines that don't fight with your home's architecture.",
			},
			"materials_that_last": {
				"We stick with materials that hold up. Concrete coping and solid tile, so you're not redoing things in a few years.",
				"With Oklahoma weather, we don't cut corners on materials. That just means problems later.",
				"We build it once, right. Concrete and quality tile that lasts decades, not years.",
			},
			"lighting_mood": {
				"Underwater lighting is non-negotiable for me. It turns a simple pool into a showpiece at night.",
				"The lighting completely changes the mood. Makes the water almost meditative in the evenings.",
				"That lighting package isn't just for safety. It's what makes the pool stunning after dark.",
			},
			"water_feature": {
				"The water itself should be the star. Clean, reflective, and peaceful.",
				"I let the water do the talking. Simple, clean, and beautiful.",
				"Water is the feature. Everything else just enhances what's naturally beautiful about it.",
			},
		},
	}
}

// RenderCTA formats a render offer around the item the customer mentioned.
func (b Banks) RenderCTA(s *Selector, exclude, specificItem string) string {
	template := s.Pick(b.RenderCTAs, exclude)
	return fmt.Sprintf(template, specificItem)
}

// MissingFieldsPrompt builds the collection prompt for the given missing
// fields: the full collection phrase when everything is missing, the single
// field prompt when one remains, a plain list otherwise.
func (b Banks) MissingFieldsPrompt(s *Selector, exclude string, missing []string) string {
	switch len(missing) {
	case 0:
		return ""
	case 4:
		return s.Pick(b.ContactCollection, exclude)
	case 1:
		if prompt, ok := b.FieldPrompts[missing[0]]; ok {
			return prompt
		}
		return "Just need one more thing!"
	default:
		return fmt.Sprintf("Great! I still need: %s.", strings.Join(missing, ", "))
	}
}

// SpecificRenderItem names the thing a render offer should reference, built
// from the customer's size and feature facts.
func SpecificRenderItem(preferredSize string, features []string) string {
	switch {
	case preferredSize != "" && len(features) > 0:
		return fmt.Sprintf("%s pool with %s", preferredSize, features[0])
	case preferredSize != "":
		return fmt.Sprintf("%s cocktail pool", preferredSize)
	case len(features) > 0:
		return fmt.Sprintf("cocktail pool with %s", features[0])
	default:
		return "cocktail pool setup"
	}
}
