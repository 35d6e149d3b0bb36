package knowledge

var defaultCategories = []string{
	"Nabiał",
	"Pieczywo",
	"Mięso i wędliny",
	"Ryby i owoce morza",
	"Owoce",
	"Warzywa",
	"Napoje",
	"Alkohol",
	"Słodycze i przekąski",
	"Produkty sypkie",
	"Mrożonki",
	"Przyprawy i sosy",
	"Dania gotowe",
	"Chemia domowa",
	"Higiena i kosmetyki",
	"Artykuły dla zwierząt",
	OtherCategory,
}

type productEntry struct {
	product Product
	aliases []string
}

var defaultProducts = []productEntry{
	{Product{"Mleko", "Nabiał", true, 7}, []string{"mleko 2%", "mleko 3.2%", "mleko swieze", "mleko spoz", "mleko uht 2%"}},
	{Product{"Masło", "Nabiał", true, 30}, []string{"maslo", "maslo ekstra", "maslo 82%", "maslo extra 200g"}},
	{Product{"Jogurt naturalny", "Nabiał", true, 14}, []string{"jogurt nat", "jogurt naturalny 400g", "jog nat"}},
	{Product{"Śmietana", "Nabiał", true, 14}, []string{"smietana 18%", "smietana 12%", "smietana 30%", "smiet 18%"}},
	{Product{"Ser żółty", "Nabiał", true, 30}, []string{"ser gouda", "ser edamski", "ser zolty plastry", "ser got"}},
	{Product{"Twaróg", "Nabiał", true, 10}, []string{"twarog", "twarog poltlusty", "ser twarogowy"}},
	{Product{"Jajka", "Nabiał", true, 28}, []string{"jaja", "jaja m", "jaja l", "jaja 10szt", "jaja wolny wybieg"}},
	{Product{"Chleb", "Pieczywo", true, 3}, []string{"chleb pszenny", "chleb zytni", "chleb wiejski", "chleb tostowy"}},
	{Product{"Bułka", "Pieczywo", true, 2}, []string{"bulka", "bulka kajzerka", "kajzerka", "bulka grahamka", "bulka pszenna"}},
	{Product{"Bagietka", "Pieczywo", true, 2}, []string{"bagietka francuska", "bagietka czosnkowa"}},
	{Product{"Pierś z kurczaka", "Mięso i wędliny", true, 3}, []string{"filet z kurczaka", "piers kurczaka", "filet kurczak", "piers z kurczaka"}},
	{Product{"Mięso mielone", "Mięso i wędliny", true, 2}, []string{"mieso mielone", "mielone wieprzowe", "mielone woł-wiep"}},
	{Product{"Szynka", "Mięso i wędliny", true, 7}, []string{"szynka konserwowa", "szynka wiejska", "szynka plastry"}},
	{Product{"Kiełbasa", "Mięso i wędliny", true, 14}, []string{"kielbasa", "kielbasa slaska", "kielbasa krakowska"}},
	{Product{"Parówki", "Mięso i wędliny", true, 14}, []string{"parowki", "parowki cienkie"}},
	{Product{"Łosoś", "Ryby i owoce morza", true, 3}, []string{"losos", "losos wedzony", "filet z lososia"}},
	{Product{"Banany", "Owoce", true, 5}, []string{"banan", "banany luz"}},
	{Product{"Jabłka", "Owoce", true, 21}, []string{"jablka", "jablko", "jablka luz"}},
	{Product{"Cytryny", "Owoce", true, 21}, []string{"cytryna", "cytryny luz"}},
	{Product{"Pomidory", "Warzywa", true, 7}, []string{"pomidor", "pomidory luz", "pomidory malinowe"}},
	{Product{"Ogórki", "Warzywa", true, 7}, []string{"ogorek", "ogorki", "ogorek zielony"}},
	{Product{"Ziemniaki", "Warzywa", true, 30}, []string{"ziemniaki luz", "ziemniaki 2kg"}},
	{Product{"Cebula", "Warzywa", true, 30}, []string{"cebula zolta", "cebula luz"}},
	{Product{"Marchew", "Warzywa", true, 21}, []string{"marchewka", "marchew luz"}},
	{Product{"Woda mineralna", "Napoje", false, 0}, []string{"woda", "woda niegaz", "woda gaz", "woda niegazowana", "woda gazowana"}},
	{Product{"Sok pomarańczowy", "Napoje", false, 0}, []string{"sok pomaranczowy", "sok pomarancza"}},
	{Product{"Kawa", "Napoje", false, 0}, []string{"kawa mielona", "kawa ziarnista", "kawa rozpuszczalna"}},
	{Product{"Herbata", "Napoje", false, 0}, []string{"herbata czarna", "herbata ekspresowa", "herbata zielona"}},
	{Product{"Piwo", "Alkohol", false, 0}, []string{"piwo jasne", "piwo puszka", "piwo butelka"}},
	{Product{"Wino", "Alkohol", false, 0}, []string{"wino czerwone", "wino biale"}},
	{Product{"Czekolada", "Słodycze i przekąski", false, 0}, []string{"czekolada mleczna", "czekolada gorzka"}},
	{Product{"Chipsy", "Słodycze i przekąski", false, 0}, []string{"chipsy solone", "chipsy paprykowe"}},
	{Product{"Mąka", "Produkty sypkie", false, 0}, []string{"maka", "maka pszenna", "maka tortowa"}},
	{Product{"Cukier", "Produkty sypkie", false, 0}, []string{"cukier bialy", "cukier trzcinowy"}},
	{Product{"Ryż", "Produkty sypkie", false, 0}, []string{"ryz", "ryz bialy", "ryz basmati"}},
	{Product{"Makaron", "Produkty sypkie", false, 0}, []string{"makaron spaghetti", "makaron penne", "makaron swiderki"}},
	{Product{"Pizza mrożona", "Mrożonki", false, 0}, []string{"pizza mrozona"}},
	{Product{"Lody", "Mrożonki", false, 0}, []string{"lody waniliowe", "lody czekoladowe"}},
	{Product{"Ketchup", "Przyprawy i sosy", false, 0}, []string{"ketchup lagodny", "ketchup pikantny"}},
	{Product{"Sól", "Przyprawy i sosy", false, 0}, []string{"sol", "sol kuchenna", "sol jodowana"}},
	{Product{"Papier toaletowy", "Chemia domowa", false, 0}, []string{"papier toal", "papier toaletowy 8 rolek"}},
	{Product{"Płyn do naczyń", "Chemia domowa", false, 0}, []string{"plyn do naczyn", "plyn naczyn"}},
	{Product{"Pasta do zębów", "Higiena i kosmetyki", false, 0}, []string{"pasta do zebow", "pasta zeby"}},
	{Product{"Karma dla kota", "Artykuły dla zwierząt", false, 0}, []string{"karma kot", "karma dla kota"}},
	{Product{"Torba", OtherCategory, false, 0}, []string{"torba foliowa", "reklamowka", "torba papierowa"}},
}

var defaultShops = []struct {
	canonical string
	aliases   []string
}{
	{"Lidl", []string{"lidl sp z o.o", "lidl polska"}},
	{"Biedronka", []string{"jeronimo martins", "jeronimo martins polska"}},
	{"Auchan", []string{"auchan polska", "auchan hipermarket"}},
	{"Kaufland", []string{"kaufland polska markety"}},
	{"Carrefour", []string{"carrefour express", "carrefour polska"}},
	{"Żabka", []string{"zabka polska"}},
	{"Dino", []string{"dino polska"}},
	{"Netto", []string{"netto sp z o.o"}},
	{"Stokrotka", nil},
	{"Rossmann", nil},
	{"Aldi", nil},
	{"Lewiatan", nil},
}

var defaultBrands = []string{
	"łaciate", "mlekovita", "piątnica", "danone", "zott", "bakoma", "hochland", "president",
	"milbona", "pilos", "mlekpol", "krasnystaw", "sierpc",
	"sokołów", "morliny", "krakus", "tarczyński", "drosed",
	"winiary", "knorr", "kamis", "prymat", "lubella", "melvit", "sante",
	"wedel", "milka", "wawel", "goplana",
	"cisowianka", "nałęczowianka", "muszynianka", "tymbark", "hortex",
	"pudliszki", "heinz", "kotlin",
}
