package mockserver

import "github.com/pavelanni/adaptest/internal/model"

// BankItem is an item of a fake dataset together with its correct choice.
type BankItem struct {
	Item    model.Item
	Correct string
}

// Dataset is a fixed bank of items served in order.
type Dataset struct {
	ID    string
	Name  string
	Items []BankItem
}

func (d Dataset) item(id string) (BankItem, bool) {
	for _, it := range d.Items {
		if it.Item.ID == id {
			return it, true
		}
	}
	return BankItem{}, false
}

func choices(ids ...string) []model.Choice {
	out := make([]model.Choice, 0, len(ids)/2)
	for i := 0; i+1 < len(ids); i += 2 {
		out = append(out, model.Choice{ID: ids[i], Text: ids[i+1]})
	}
	return out
}

// DefaultDatasets returns the banks served by a new Server. A processor
// that always picks the first choice answers two of the three DEMO1 items
// correctly.
func DefaultDatasets() []Dataset {
	return []Dataset{
		{
			ID:   "DEMO1",
			Name: "Demo arithmetic",
			Items: []BankItem{
				{
					Item: model.Item{ID: "demo1-q1", Question: "What is 2 + 2?",
						Choices: choices("demo1-q1-a", "4", "demo1-q1-b", "5", "demo1-q1-c", "22")},
					Correct: "demo1-q1-a",
				},
				{
					Item: model.Item{ID: "demo1-q2", Question: "What is 7 * 6?",
						Choices: choices("demo1-q2-a", "36", "demo1-q2-b", "42", "demo1-q2-c", "48")},
					Correct: "demo1-q2-b",
				},
				{
					Item: model.Item{ID: "demo1-q3", Question: "What is 10 / 4?",
						Choices: choices("demo1-q3-a", "2.5", "demo1-q3-b", "2", "demo1-q3-c", "3")},
					Correct: "demo1-q3-a",
				},
			},
		},
		{
			ID:   "GEO5",
			Name: "Capitals",
			Items: []BankItem{
				{
					Item: model.Item{ID: "geo5-q1", Question: "Capital of France?",
						Choices: choices("geo5-q1-a", "Paris", "geo5-q1-b", "Lyon")},
					Correct: "geo5-q1-a",
				},
				{
					Item: model.Item{ID: "geo5-q2", Question: "Capital of Japan?",
						Choices: choices("geo5-q2-a", "Osaka", "geo5-q2-b", "Tokyo")},
					Correct: "geo5-q2-b",
				},
				{
					Item: model.Item{ID: "geo5-q3", Question: "Capital of Canada?",
						Choices: choices("geo5-q3-a", "Ottawa", "geo5-q3-b", "Toronto")},
					Correct: "geo5-q3-a",
				},
				{
					Item: model.Item{ID: "geo5-q4", Question: "Capital of Australia?",
						Choices: choices("geo5-q4-a", "Sydney", "geo5-q4-b", "Canberra")},
					Correct: "geo5-q4-b",
				},
				{
					Item: model.Item{ID: "geo5-q5", Question: "Capital of Kenya?",
						Choices: choices("geo5-q5-a", "Nairobi", "geo5-q5-b", "Mombasa")},
					Correct: "geo5-q5-a",
				},
			},
		},
		{ID: "EMPTY", Name: "Empty test"},
	}
}
